package snapshot

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"coldchain/domain/inventory"
)

// absentChild terminates a branch in the pre-order stream. -1 can never
// be a valid YYYYMMDD expiry.
const absentChild int32 = -1

// fieldWidth is the fixed on-disk width of product and destination
// fields, including the NUL terminator.
const fieldWidth = 64

// Save writes the whole tree to path, truncating any previous file.
//
// Per node, little-endian: int32 expiry, [64]byte product, int32 stock,
// int32 order count, count x ([64]byte destination, int32 qty), then the
// left subtree, then the right subtree. The persisted stock is the
// available stock as-is; pending orders are carried alongside it, never
// folded into it.
func Save(path string, tree *inventory.Tree) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := writeLot(w, tree.Root()); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeLot(w io.Writer, n *inventory.Lot) error {
	if n == nil {
		return binary.Write(w, binary.LittleEndian, absentChild)
	}
	if err := binary.Write(w, binary.LittleEndian, n.Expiry); err != nil {
		return err
	}
	if err := writeFixed(w, n.Product); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, n.Stock); err != nil {
		return err
	}
	count := int32(n.Orders().Count())
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		return err
	}
	for o := n.Orders().Head(); o != nil; o = o.Next() {
		if err := writeFixed(w, o.Destination); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, o.Qty); err != nil {
			return err
		}
	}
	if err := writeLot(w, n.Left()); err != nil {
		return err
	}
	return writeLot(w, n.Right())
}

func writeFixed(w io.Writer, s string) error {
	var buf [fieldWidth]byte
	copy(buf[:fieldWidth-1], s)
	_, err := w.Write(buf[:])
	return err
}
