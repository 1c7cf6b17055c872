package dat

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

type cmpTokenKind int

const (
	cmpEOF cmpTokenKind = iota
	cmpOpen
	cmpClose
	cmpWord
	cmpString
)

type cmpToken struct {
	kind cmpTokenKind
	text string
	line int
}

func (t cmpToken) isValue() bool {
	return t.kind == cmpWord || t.kind == cmpString
}

type cmpLexer struct {
	r    *bufio.Reader
	line int
}

func newCMPLexer(r io.Reader) *cmpLexer {
	return &cmpLexer{r: bufio.NewReader(r), line: 1}
}

func (l *cmpLexer) next() (cmpToken, error) {
	for {
		b, err := l.r.ReadByte()
		if errors.Is(err, io.EOF) {
			return cmpToken{kind: cmpEOF, line: l.line}, nil
		}
		if err != nil {
			return cmpToken{}, err
		}
		if b == '\n' {
			l.line++
		}
		if isSpace(b) {
			continue
		}
		switch b {
		case '(':
			return cmpToken{kind: cmpOpen, text: "(", line: l.line}, nil
		case ')':
			return cmpToken{kind: cmpClose, text: ")", line: l.line}, nil
		case '"':
			return l.quoted()
		default:
			return l.word(b)
		}
	}
}

func (l *cmpLexer) quoted() (cmpToken, error) {
	start := l.line
	var sb strings.Builder
	for {
		b, err := l.r.ReadByte()
		if errors.Is(err, io.EOF) {
			return cmpToken{}, fmt.Errorf("line %d: unterminated string", start)
		}
		if err != nil {
			return cmpToken{}, err
		}
		if b == '"' {
			return cmpToken{kind: cmpString, text: sb.String(), line: start}, nil
		}
		if b == '\n' {
			l.line++
		}
		sb.WriteByte(b)
	}
}

func (l *cmpLexer) word(first byte) (cmpToken, error) {
	var sb strings.Builder
	sb.WriteByte(first)
	for {
		b, err := l.r.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return cmpToken{}, err
		}
		if isSpace(b) || b == '(' || b == ')' || b == '"' {
			if err := l.r.UnreadByte(); err != nil {
				return cmpToken{}, err
			}
			break
		}
		sb.WriteByte(b)
	}
	return cmpToken{kind: cmpWord, text: sb.String(), line: l.line}, nil
}

// cmpRomFlags are rom keys written without a value.
var cmpRomFlags = map[string]struct{}{
	"nodump":   {},
	"baddump":  {},
	"verified": {},
}

type cmpState int

const (
	cmpTop cmpState = iota
	cmpHeader
	cmpGame
	cmpRom
)

// cmpParser is driven one token at a time. skipDepth counts the open
// parentheses of a block we do not care about.
type cmpParser struct {
	state     cmpState
	skipDepth int
	df        DatFile
	sawHeader bool

	game       DatGame
	gameSerial string
	rom        romFields
}

func parseClrMamePro(r io.Reader) (*DatFile, error) {
	lex := newCMPLexer(r)
	p := &cmpParser{}
	for {
		tok, err := lex.next()
		if err != nil {
			return nil, fmt.Errorf("decode clrmamepro dat: %w", err)
		}
		if p.skipDepth > 0 {
			switch tok.kind {
			case cmpOpen:
				p.skipDepth++
			case cmpClose:
				p.skipDepth--
			case cmpEOF:
				return nil, fmt.Errorf("decode clrmamepro dat: line %d: unterminated block", tok.line)
			}
			continue
		}
		if p.state == cmpTop {
			done, err := p.top(lex, tok)
			if err != nil {
				return nil, fmt.Errorf("decode clrmamepro dat: %w", err)
			}
			if done {
				break
			}
			continue
		}
		if err := p.inBlock(lex, tok); err != nil {
			return nil, fmt.Errorf("decode clrmamepro dat: %w", err)
		}
	}
	if !p.sawHeader && len(p.df.Games) == 0 {
		return nil, ErrNoGames
	}
	df := p.df
	return &df, nil
}

func (p *cmpParser) top(lex *cmpLexer, tok cmpToken) (bool, error) {
	switch tok.kind {
	case cmpEOF:
		return true, nil
	case cmpWord:
	default:
		return false, fmt.Errorf("line %d: unexpected %q at top level", tok.line, tok.text)
	}
	open, err := lex.next()
	if err != nil {
		return false, err
	}
	if open.kind != cmpOpen {
		return false, fmt.Errorf("line %d: expected ( after %s", open.line, tok.text)
	}
	switch strings.ToLower(tok.text) {
	case "clrmamepro":
		p.state = cmpHeader
		p.sawHeader = true
	case "game", "machine", "resource":
		p.state = cmpGame
		p.game = DatGame{}
		p.gameSerial = ""
	default:
		p.skipDepth = 1
	}
	return false, nil
}

func (p *cmpParser) inBlock(lex *cmpLexer, tok cmpToken) error {
	switch tok.kind {
	case cmpClose:
		return p.closeBlock()
	case cmpEOF:
		return fmt.Errorf("line %d: unterminated block", tok.line)
	case cmpOpen:
		return fmt.Errorf("line %d: unexpected (", tok.line)
	}
	key := strings.ToLower(tok.text)
	if p.state == cmpRom {
		if _, ok := cmpRomFlags[key]; ok {
			p.rom[key] = ""
			return nil
		}
	}
	value, err := lex.next()
	if err != nil {
		return err
	}
	switch {
	case value.kind == cmpOpen:
		if p.state == cmpGame && key == "rom" {
			p.state = cmpRom
			p.rom = romFields{}
			return nil
		}
		p.skipDepth = 1
		return nil
	case value.isValue():
		p.assign(key, value.text)
		return nil
	case value.kind == cmpClose && p.state == cmpRom:
		// bare flag as the last item of a rom line, e.g. "baddump )"
		p.rom[key] = ""
		return p.closeBlock()
	default:
		return fmt.Errorf("line %d: missing value for %s", value.line, key)
	}
}

func (p *cmpParser) assign(key, value string) {
	switch p.state {
	case cmpHeader:
		switch key {
		case "name":
			p.df.Name = strings.TrimSpace(value)
		case "description":
			p.df.Description = strings.TrimSpace(value)
		case "version":
			p.df.Version = strings.TrimSpace(value)
		}
	case cmpGame:
		switch key {
		case "name":
			p.game.Name = strings.TrimSpace(value)
		case "region":
			p.game.Region = strings.TrimSpace(value)
		case "serial":
			p.gameSerial = value
		}
	case cmpRom:
		p.rom[key] = value
	}
}

func (p *cmpParser) closeBlock() error {
	switch p.state {
	case cmpRom:
		rom, ok, err := p.rom.build(p.game.Name)
		if err != nil {
			return err
		}
		if ok {
			p.game.Roms = append(p.game.Roms, rom)
		}
		p.rom = nil
		p.state = cmpGame
	case cmpGame:
		closeGame(&p.game, p.gameSerial)
		p.df.Games = append(p.df.Games, p.game)
		p.game = DatGame{}
		p.state = cmpTop
	case cmpHeader:
		p.state = cmpTop
	}
	return nil
}
