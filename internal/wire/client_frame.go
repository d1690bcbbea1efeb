package wire

import "github.com/beachsh/beach/internal/errs"

// EncodeClientFrame serializes f into its bit-exact wire representation.
func EncodeClientFrame(f ClientFrame) ([]byte, error) {
	w := &writer{}
	w.u8(f.Tag)

	switch f.Tag {
	case TagInput:
		b := f.Input
		w.u64(b.Seq)
		w.blob(b.Bytes)

	case TagResize:
		b := f.Resize
		w.u32(b.Cols)
		w.u32(b.Rows)

	case TagRequestBackfill:
		b := f.RequestBackfill
		w.i64(b.FromRow)
		w.u32(b.Count)

	case TagAck:
		w.u64(f.Ack.Seq)

	case TagClientExtension:
		b := f.Extension
		w.str(b.Namespace)
		w.str(b.Kind)
		w.blob(b.Payload)

	default:
		return nil, errs.New(errs.KindMalformed, "unknown client frame tag")
	}

	return w.buf, nil
}

// DecodeClientFrame parses a tag+body byte slice into a ClientFrame.
func DecodeClientFrame(data []byte) (ClientFrame, error) {
	r := &reader{buf: data}
	tag, err := r.u8()
	if err != nil {
		return ClientFrame{}, err
	}
	f := ClientFrame{Tag: tag}

	switch tag {
	case TagInput:
		b := &InputBody{}
		if b.Seq, err = r.u64(); err != nil {
			return f, err
		}
		if b.Bytes, err = r.blob(); err != nil {
			return f, err
		}
		f.Input = b

	case TagResize:
		b := &ResizeBody{}
		if b.Cols, err = r.u32(); err != nil {
			return f, err
		}
		if b.Rows, err = r.u32(); err != nil {
			return f, err
		}
		f.Resize = b

	case TagRequestBackfill:
		b := &RequestBackfillBody{}
		if b.FromRow, err = r.i64(); err != nil {
			return f, err
		}
		if b.Count, err = r.u32(); err != nil {
			return f, err
		}
		f.RequestBackfill = b

	case TagAck:
		b := &AckBody{}
		if b.Seq, err = r.u64(); err != nil {
			return f, err
		}
		f.Ack = b

	case TagClientExtension:
		b := &ExtensionBody{}
		if b.Namespace, err = r.str(); err != nil {
			return f, err
		}
		if b.Kind, err = r.str(); err != nil {
			return f, err
		}
		if b.Payload, err = r.blob(); err != nil {
			return f, err
		}
		f.Extension = b

	default:
		return f, errs.New(errs.KindMalformed, "unknown client frame tag")
	}

	return f, nil
}
