package bus

import (
	"bytes"
	"errors"
	"testing"
)

func TestLoopback(t *testing.T) {
	var b Bus = Loopback{}
	rx := make([]byte, 2)
	if err := b.Transfer([]byte{0x05, 0x01}, rx); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rx, []byte{0x05, 0x01}) {
		t.Fatalf("rx = %x", rx)
	}
	if err := b.Transfer([]byte{1}, rx); !errors.Is(err, ErrLength) {
		t.Fatalf("err = %v, want ErrLength", err)
	}
}

func TestFunc(t *testing.T) {
	var b Bus = Func(func(tx, rx []byte) error {
		for i := range tx {
			rx[i] = ^tx[i]
		}
		return nil
	})
	rx := make([]byte, 2)
	b.Transfer([]byte{0x00, 0xff}, rx)
	if !bytes.Equal(rx, []byte{0xff, 0x00}) {
		t.Fatalf("rx = %x", rx)
	}
}

func TestRegisterRead(t *testing.T) {
	r := NewRegister()
	r.Set(0x10, 0xab)

	tests := []struct {
		name string
		tx   []byte
		want []byte
	}{
		{"default register value", []byte{ReadCommand, 0x03}, []byte{0x03, 0x03}},
		{"programmed register", []byte{ReadCommand, 0x10}, []byte{0x10, 0xab}},
		{"unknown command", []byte{0x9, 0x10}, []byte{0x09, 0x00}},
		{"single byte", []byte{0x42}, []byte{0x42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rx := make([]byte, len(tt.tx))
			if err := r.Transfer(tt.tx, rx); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(rx, tt.want) {
				t.Fatalf("rx = %x, want %x", rx, tt.want)
			}
		})
	}
	if r.Reads() != 2 {
		t.Fatalf("Reads = %d, want 2", r.Reads())
	}
	if err := r.Transfer([]byte{1, 2}, []byte{0}); !errors.Is(err, ErrLength) {
		t.Fatalf("err = %v", err)
	}
}

func TestNew(t *testing.T) {
	if b, err := New(""); err != nil || b != (Loopback{}) {
		t.Fatalf("default = %v, %v", b, err)
	}
	if b, err := New(DeviceRegister); err != nil {
		t.Fatal(err)
	} else if _, ok := b.(*Register); !ok {
		t.Fatalf("register device = %T", b)
	}
	if _, err := New("i2c"); !errors.Is(err, ErrDevice) {
		t.Fatalf("err = %v", err)
	}
}
