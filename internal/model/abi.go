package model

import (
	"fmt"
	"slices"
)

// ABI describes a calling convention by its argument registers, in order,
// and its return register. Return is empty when the convention is unknown.
type ABI struct {
	Args   []string `json:"args" yaml:"args"`
	Return string   `json:"return,omitempty" yaml:"return,omitempty"`
}

const (
	ABIUnknown      = "UNKNOWN"
	ABIX86Cdecl     = "X86_CDECL"
	ABIX86Fastcall  = "X86_FASTCALL"
	ABIX86BFastcall = "X86_BFASTCALL"
	ABIX64Win       = "X64_WIN"
	ABIX64SysV      = "X64_SYSV"
	ABIARMStd       = "ARM_STD"
)

var abis = map[string]ABI{
	ABIUnknown:      {},
	ABIX86Cdecl:     {Return: "EAX"},
	ABIX86Fastcall:  {Args: []string{"ECX", "EDX"}, Return: "EAX"},
	ABIX86BFastcall: {Args: []string{"EAX", "EDX", "ECX"}, Return: "EAX"},
	ABIX64Win:       {Args: []string{"RCX", "RDX", "R8", "R9"}, Return: "RAX"},
	ABIX64SysV:      {Args: []string{"RDI", "RSI", "RDX", "RCX", "R8", "R9"}, Return: "RAX"},
	ABIARMStd:       {Args: []string{"r0", "r1", "r2", "r3"}, Return: "r0"},
}

// LookupABI returns a copy of the named descriptor.
func LookupABI(name string) (ABI, error) {
	abi, ok := abis[name]
	if !ok {
		return ABI{}, fmt.Errorf("unknown abi %q", name)
	}
	return ABI{Args: slices.Clone(abi.Args), Return: abi.Return}, nil
}

// ABINames lists the known conventions in a stable order.
func ABINames() []string {
	names := make([]string, 0, len(abis))
	for n := range abis {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
