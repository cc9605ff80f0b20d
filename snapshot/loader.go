package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"coldchain/domain/inventory"
)

// ErrCorrupt reports a truncated or malformed snapshot file.
var ErrCorrupt = errors.New("snapshot: corrupt or truncated file")

// Load rebuilds the tree from path. A missing or empty file is not an
// error: the tree is cleared to empty inventory. On any reconstruction
// failure the live tree is left untouched.
func Load(path string, tree *inventory.Tree) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		tree.Clear()
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if _, err := br.Peek(1); err == io.EOF {
		tree.Clear()
		return nil
	}

	tr := &treeReader{r: br, pool: tree.Pool()}
	root, err := tr.readLot()
	if err != nil {
		if errors.Is(err, inventory.ErrAllocation) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	tree.Adopt(root)
	return nil
}

type treeReader struct {
	r    *bufio.Reader
	pool *inventory.OrderPool
}

// readLot reconstructs one pre-order subtree. On failure it has already
// returned every order it built to the pool.
func (tr *treeReader) readLot() (*inventory.Lot, error) {
	var expiry int32
	if err := binary.Read(tr.r, binary.LittleEndian, &expiry); err != nil {
		return nil, err
	}
	if expiry == absentChild {
		return nil, nil
	}

	product, err := tr.readFixed()
	if err != nil {
		return nil, err
	}
	var stock, count int32
	if err := binary.Read(tr.r, binary.LittleEndian, &stock); err != nil {
		return nil, err
	}
	if err := binary.Read(tr.r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("negative order count %d", count)
	}

	lot := inventory.NewLot(expiry, product, stock)
	for i := int32(0); i < count; i++ {
		dest, err := tr.readFixed()
		if err != nil {
			lot.ReleaseOrders(tr.pool)
			return nil, err
		}
		var qty int32
		if err := binary.Read(tr.r, binary.LittleEndian, &qty); err != nil {
			lot.ReleaseOrders(tr.pool)
			return nil, err
		}
		if err := lot.AttachOrder(tr.pool, dest, qty); err != nil {
			lot.ReleaseOrders(tr.pool)
			return nil, err
		}
	}

	left, err := tr.readLot()
	if err != nil {
		lot.ReleaseOrders(tr.pool)
		return nil, err
	}
	right, err := tr.readLot()
	if err != nil {
		inventory.ReleaseSubtree(left, tr.pool)
		lot.ReleaseOrders(tr.pool)
		return nil, err
	}
	lot.LinkChildren(left, right)
	return lot, nil
}

func (tr *treeReader) readFixed() (string, error) {
	var buf [fieldWidth]byte
	if _, err := io.ReadFull(tr.r, buf[:]); err != nil {
		return "", err
	}
	if i := bytes.IndexByte(buf[:], 0); i >= 0 {
		return string(buf[:i]), nil
	}
	return string(buf[:]), nil
}
