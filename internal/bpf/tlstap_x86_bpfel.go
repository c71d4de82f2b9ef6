// Code generated by bpf2go; DO NOT EDIT.
//go:build 386 || amd64

package bpf

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"github.com/cilium/ebpf"
)

type TlsTapCaptureEvent struct {
	TsNs      uint64
	Requested uint64
	Tid       uint32
	Pid       uint32
	Captured  uint32
	Comm      [16]int8
	Payload   [256]uint8
	Pad       [4]uint8
}

// LoadTlsTap returns the embedded CollectionSpec for TlsTap.
func LoadTlsTap() (*ebpf.CollectionSpec, error) {
	reader := bytes.NewReader(_TlsTapBytes)
	spec, err := ebpf.LoadCollectionSpecFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("can't load TlsTap: %w", err)
	}

	return spec, err
}

// LoadTlsTapObjects loads TlsTap and converts it into a struct.
//
// The following types are suitable as obj argument:
//
//	*TlsTapObjects
//	*TlsTapPrograms
//	*TlsTapMaps
//
// See ebpf.CollectionSpec.LoadAndAssign documentation for details.
func LoadTlsTapObjects(obj interface{}, opts *ebpf.CollectionOptions) error {
	spec, err := LoadTlsTap()
	if err != nil {
		return err
	}

	return spec.LoadAndAssign(obj, opts)
}

// TlsTapSpecs contains maps and programs before they are loaded into the kernel.
//
// It can be passed ebpf.CollectionSpec.Assign.
type TlsTapSpecs struct {
	TlsTapProgramSpecs
	TlsTapMapSpecs
}

// TlsTapSpecs contains programs before they are loaded into the kernel.
//
// It can be passed ebpf.CollectionSpec.Assign.
type TlsTapProgramSpecs struct {
	UprobeSslWrite *ebpf.ProgramSpec `ebpf:"uprobe_ssl_write"`
}

// TlsTapMapSpecs contains maps before they are loaded into the kernel.
//
// It can be passed ebpf.CollectionSpec.Assign.
type TlsTapMapSpecs struct {
	Events  *ebpf.MapSpec `ebpf:"events"`
	Scratch *ebpf.MapSpec `ebpf:"scratch"`
}

// TlsTapObjects contains all objects after they have been loaded into the kernel.
//
// It can be passed to LoadTlsTapObjects or ebpf.CollectionSpec.LoadAndAssign.
type TlsTapObjects struct {
	TlsTapPrograms
	TlsTapMaps
}

func (o *TlsTapObjects) Close() error {
	return _TlsTapClose(
		&o.TlsTapPrograms,
		&o.TlsTapMaps,
	)
}

// TlsTapMaps contains all maps after they have been loaded into the kernel.
//
// It can be passed to LoadTlsTapObjects or ebpf.CollectionSpec.LoadAndAssign.
type TlsTapMaps struct {
	Events  *ebpf.Map `ebpf:"events"`
	Scratch *ebpf.Map `ebpf:"scratch"`
}

func (m *TlsTapMaps) Close() error {
	return _TlsTapClose(
		m.Events,
		m.Scratch,
	)
}

// TlsTapPrograms contains all programs after they have been loaded into the kernel.
//
// It can be passed to LoadTlsTapObjects or ebpf.CollectionSpec.LoadAndAssign.
type TlsTapPrograms struct {
	UprobeSslWrite *ebpf.Program `ebpf:"uprobe_ssl_write"`
}

func (p *TlsTapPrograms) Close() error {
	return _TlsTapClose(
		p.UprobeSslWrite,
	)
}

func _TlsTapClose(closers ...io.Closer) error {
	for _, closer := range closers {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Do not access this directly.
//
//go:embed tlstap_x86_bpfel.o
var _TlsTapBytes []byte
