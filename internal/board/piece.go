package board

import (
	"fmt"
	"strings"
	"unicode"
)

// Color is a side. It doubles as the board orientation (the side drawn at the bottom).
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

func (c Color) Opposite() Color {
	if c == Black {
		return White
	}
	return Black
}

// Letter is the FEN side-to-move letter.
func (c Color) Letter() string {
	if c == Black {
		return "b"
	}
	return "w"
}

func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	}
	return White, fmt.Errorf("invalid color %q", s)
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

type PieceType uint8

const (
	NoPieceType PieceType = iota
	King
	Queen
	Rook
	Bishop
	Knight
	Pawn
)

var pieceTypeNames = [...]string{"", "king", "queen", "rook", "bishop", "knight", "pawn"}

const pieceTypeLetters = " kqrbnp"

func (t PieceType) String() string {
	if int(t) < len(pieceTypeNames) {
		return pieceTypeNames[t]
	}
	return ""
}

// Letter returns the lowercase FEN letter, or 0 for NoPieceType.
func (t PieceType) Letter() byte {
	if t == NoPieceType || int(t) >= len(pieceTypeLetters) {
		return 0
	}
	return pieceTypeLetters[t]
}

// ParsePieceType accepts a FEN/UCI letter in either case or a full name.
func ParsePieceType(s string) (PieceType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if len(v) == 1 {
		if i := strings.IndexByte(pieceTypeLetters, v[0]); i > 0 {
			return PieceType(i), nil
		}
	}
	for i, name := range pieceTypeNames {
		if i > 0 && name == v {
			return PieceType(i), nil
		}
	}
	return NoPieceType, fmt.Errorf("invalid piece type %q", s)
}

func (t PieceType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *PieceType) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*t = NoPieceType
		return nil
	}
	v, err := ParsePieceType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Piece is a colored piece kind without identity.
type Piece struct {
	Type  PieceType `json:"type"`
	Color Color     `json:"color"`
}

// FEN returns the placement letter, uppercase for white.
func (p Piece) FEN() rune {
	l := rune(p.Type.Letter())
	if l == 0 {
		return 0
	}
	if p.Color == White {
		return unicode.ToUpper(l)
	}
	return l
}

// PieceFromFEN decodes a placement letter.
func PieceFromFEN(r rune) (Piece, bool) {
	t, err := ParsePieceType(string(unicode.ToLower(r)))
	if err != nil {
		return Piece{}, false
	}
	c := Black
	if unicode.IsUpper(r) {
		c = White
	}
	return Piece{Type: t, Color: c}, true
}

func (p Piece) String() string { return p.Color.String() + "-" + p.Type.String() }
