package wire

import (
	"encoding/binary"

	"github.com/beachsh/beach/internal/cell"
	"github.com/beachsh/beach/internal/deltastream"
	"github.com/beachsh/beach/internal/errs"
)

// writer accumulates a big-endian binary body.
type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *writer) u64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }
func (w *writer) i64(v int64)  { w.u64(uint64(v)) }
func (w *writer) bytesRaw(b []byte) { w.buf = append(w.buf, b...) }
func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}
func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}
func (w *writer) blob(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// reader consumes a big-endian binary body with bounds checking.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) need(n int) error {
	if r.remaining() < n {
		return errs.New(errs.KindMalformed, "truncated frame")
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) boolean() (bool, error) {
	v, err := r.u8()
	return v != 0, err
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

func (r *reader) blob() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, r.buf[r.off:r.off+int(n)])
	r.off += int(n)
	return b, nil
}

// --- Update variant encode/decode ---

func encodeUpdate(w *writer, u deltastream.Update) {
	switch u.Kind {
	case deltastream.KindCell:
		w.u8(UpdateCell)
		w.u64(u.Seq)
		w.u32(u.Row)
		w.u32(u.Col)
		w.u64(uint64(u.Payload))
	case deltastream.KindRect:
		w.u8(UpdateRect)
		w.u64(u.Seq)
		w.u32(u.R0)
		w.u32(u.R1)
		w.u32(u.C0)
		w.u32(u.C1)
		w.u64(uint64(u.Payload))
	case deltastream.KindRow:
		w.u8(UpdateRow)
		w.u64(u.Seq)
		w.u32(u.RowID)
		w.u32(uint32(len(u.Cells)))
		for _, c := range u.Cells {
			w.u64(uint64(c))
		}
	case deltastream.KindRowSegment:
		encodeRowSegment(w, u.RowID, u.SegStart, u.Seq, u.Cells)
	case deltastream.KindTrim:
		w.u8(UpdateTrim)
		w.u64(u.Seq)
		w.i64(u.TrimStart)
		w.u32(uint32(u.TrimCount))
	case deltastream.KindStyle:
		w.u8(UpdateStyle)
		w.u64(u.Seq)
		w.u32(uint32(u.StyleID))
		w.u32(uint32(u.Style.Fg))
		w.u32(uint32(u.Style.Bg))
		w.u8(u.Style.Attrs)
	case deltastream.KindCursor:
		// Cursor updates are carried as their own top-level frame
		// (tag 9) rather than inline in a Snapshot/Delta update list,
		// but decode still needs to accept one if present for forward
		// compatibility, so we give it a discriminator too.
		w.u8(0) // reserved: cursor-as-update is never produced
		w.u64(u.Seq)
	}
}

// encodeRowSegment encodes a sparse row update starting at startCol.
// RowSegment is optional to produce (spec §4.4); this server never
// emits it (DESIGN.md Open Question #2), but the encoder exists so
// tests and other implementations embedding this codec can produce
// one, and the decoder always accepts it.
func encodeRowSegment(w *writer, row uint32, startCol uint32, seq uint64, cells []cell.Packed) {
	w.u8(UpdateRowSegment)
	w.u64(seq)
	w.u32(row)
	w.u32(startCol)
	w.u32(uint32(len(cells)))
	for _, c := range cells {
		w.u64(uint64(c))
	}
}

func decodeUpdate(r *reader) (deltastream.Update, error) {
	disc, err := r.u8()
	if err != nil {
		return deltastream.Update{}, err
	}
	seq, err := r.u64()
	if err != nil {
		return deltastream.Update{}, err
	}
	switch disc {
	case UpdateCell:
		row, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		col, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		payload, err := r.u64()
		if err != nil {
			return deltastream.Update{}, err
		}
		return deltastream.NewCell(row, col, seq, cell.Packed(payload)), nil

	case UpdateRect:
		r0, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		r1, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		c0, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		c1, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		payload, err := r.u64()
		if err != nil {
			return deltastream.Update{}, err
		}
		return deltastream.NewRect(r0, r1, c0, c1, seq, cell.Packed(payload)), nil

	case UpdateRow:
		row, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		n, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		cells := make([]cell.Packed, n)
		for i := range cells {
			v, err := r.u64()
			if err != nil {
				return deltastream.Update{}, err
			}
			cells[i] = cell.Packed(v)
		}
		return deltastream.NewRow(row, seq, cells), nil

	case UpdateRowSegment:
		row, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		startCol, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		n, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		cells := make([]cell.Packed, n)
		for i := range cells {
			v, err := r.u64()
			if err != nil {
				return deltastream.Update{}, err
			}
			cells[i] = cell.Packed(v)
		}
		return deltastream.NewRowSegment(row, startCol, seq, cells), nil

	case UpdateTrim:
		start, err := r.i64()
		if err != nil {
			return deltastream.Update{}, err
		}
		count, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		return deltastream.NewTrim(start, int(count), seq), nil

	case UpdateStyle:
		id, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		fg, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		bg, err := r.u32()
		if err != nil {
			return deltastream.Update{}, err
		}
		attrs, err := r.u8()
		if err != nil {
			return deltastream.Update{}, err
		}
		style := cell.Style{Fg: cell.Color(fg), Bg: cell.Color(bg), Attrs: attrs}
		return deltastream.NewStyle(cell.StyleID(id), seq, style), nil

	case 0: // reserved cursor-as-update: discriminator and seq only
		return deltastream.Update{Kind: deltastream.KindCursor, Seq: seq}, nil

	default:
		return deltastream.Update{}, errs.New(errs.KindMalformed, "unknown update discriminator")
	}
}

func encodeUpdates(w *writer, us []deltastream.Update) {
	w.u32(uint32(len(us)))
	for _, u := range us {
		encodeUpdate(w, u)
	}
}

func decodeUpdates(r *reader) ([]deltastream.Update, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]deltastream.Update, n)
	for i := range out {
		u, err := decodeUpdate(r)
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}
