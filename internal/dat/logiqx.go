package dat

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

type logiqxState int

const (
	logiqxTop logiqxState = iota
	logiqxHeader
	logiqxGame
)

// logiqxParser walks the XML token stream. Only one header or game is open
// at a time; leaf text is collected for the element named by field.
type logiqxParser struct {
	state     logiqxState
	df        DatFile
	sawHeader bool

	field string
	text  strings.Builder

	game       DatGame
	gameSerial string
}

func parseLogiqx(r io.Reader) (*DatFile, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = false // No-Intro and MAME datafiles reference a DTD.

	p := &logiqxParser{}
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode logiqx dat: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := p.start(t); err != nil {
				return nil, err
			}
		case xml.EndElement:
			p.end(t)
		case xml.CharData:
			if p.field != "" {
				p.text.Write(t)
			}
		}
	}
	if !p.sawHeader && len(p.df.Games) == 0 {
		return nil, ErrNoGames
	}
	df := p.df
	return &df, nil
}

func (p *logiqxParser) start(el xml.StartElement) error {
	name := strings.ToLower(el.Name.Local)
	switch p.state {
	case logiqxTop:
		switch name {
		case "header":
			p.state = logiqxHeader
			p.sawHeader = true
		case "game", "machine":
			p.state = logiqxGame
			p.game = DatGame{Name: strings.TrimSpace(attr(el, "name"))}
			p.gameSerial = attr(el, "serial")
		}
	case logiqxHeader:
		switch name {
		case "name", "description", "version":
			p.beginField(name)
		}
	case logiqxGame:
		switch name {
		case "rom":
			fields := romFields{}
			for _, a := range el.Attr {
				fields[strings.ToLower(a.Name.Local)] = a.Value
			}
			rom, ok, err := fields.build(p.game.Name)
			if err != nil {
				return fmt.Errorf("decode logiqx dat: %w", err)
			}
			if ok {
				p.game.Roms = append(p.game.Roms, rom)
			}
		case "release":
			if p.game.Region == "" {
				p.game.Region = strings.TrimSpace(attr(el, "region"))
			}
		case "serial", "region":
			p.beginField(name)
		}
	}
	return nil
}

func (p *logiqxParser) end(el xml.EndElement) {
	name := strings.ToLower(el.Name.Local)
	if p.field != "" && name == p.field {
		p.commitField()
		return
	}
	switch {
	case p.state == logiqxHeader && name == "header":
		p.state = logiqxTop
	case p.state == logiqxGame && (name == "game" || name == "machine"):
		closeGame(&p.game, p.gameSerial)
		p.df.Games = append(p.df.Games, p.game)
		p.game = DatGame{}
		p.gameSerial = ""
		p.state = logiqxTop
	}
}

func (p *logiqxParser) beginField(name string) {
	p.field = name
	p.text.Reset()
}

func (p *logiqxParser) commitField() {
	value := strings.TrimSpace(p.text.String())
	switch p.state {
	case logiqxHeader:
		switch p.field {
		case "name":
			p.df.Name = value
		case "description":
			p.df.Description = value
		case "version":
			p.df.Version = value
		}
	case logiqxGame:
		switch p.field {
		case "serial":
			if p.gameSerial == "" {
				p.gameSerial = value
			}
		case "region":
			if p.game.Region == "" {
				p.game.Region = value
			}
		}
	}
	p.field = ""
	p.text.Reset()
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if strings.EqualFold(a.Name.Local, name) {
			return a.Value
		}
	}
	return ""
}
