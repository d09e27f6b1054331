package comment

import (
	"unicode/utf8"

	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Kind classifies a message body.
type Kind int

const (
	KindOther Kind = iota
	KindComment
)

func (k Kind) String() string {
	if k == KindComment {
		return "comment"
	}
	return "other"
}

// textCommentOp is the 32-bit op prefix of a plain text comment cell.
const textCommentOp = 0

// Result is the outcome of decoding a body.
type Result struct {
	Kind Kind
	Text string
}

// IsComment reports whether the body was a text comment.
func (r Result) IsComment() bool {
	return r.Kind == KindComment
}

// Decoder extracts text comments from message bodies.
type Decoder struct{}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode classifies body. Text bodies are comments when they are valid UTF-8.
// Cell bodies are comments when they start with a zero op followed by a
// snake-encoded string. Encrypted and empty bodies are never comments.
func (d *Decoder) Decode(body ledger.Body) Result {
	switch body.Format {
	case ledger.BodyText:
		if !utf8.Valid(body.Data) {
			return Result{Kind: KindOther}
		}
		return Result{Kind: KindComment, Text: string(body.Data)}
	case ledger.BodyCell:
		text, ok := decodeCell(body.Data)
		if !ok {
			return Result{Kind: KindOther}
		}
		return Result{Kind: KindComment, Text: text}
	default:
		return Result{Kind: KindOther}
	}
}

func decodeCell(boc []byte) (string, bool) {
	if len(boc) == 0 {
		return "", false
	}
	c, err := cell.FromBOC(boc)
	if err != nil {
		return "", false
	}
	s := c.BeginParse()
	if s.BitsLeft() < 32 {
		return "", false
	}
	op, err := s.LoadUInt(32)
	if err != nil || op != textCommentOp {
		return "", false
	}
	text, err := s.LoadStringSnake()
	if err != nil || !utf8.ValidString(text) {
		return "", false
	}
	return text, true
}
