package spec

import (
	"strings"

	verr "github.com/nihei9/urchin/error"
	"github.com/nihei9/urchin/grammar"
)

func raiseSyntaxError(pos Position, synErr *SyntaxError) {
	panic(&verr.SpecError{
		Cause: synErr,
		Row:   pos.Row,
		Col:   pos.Col,
	})
}

// ParseRHS parses the right-hand side of a rule:
//
//	alternatives := sequence ('|' sequence)*
//	sequence     := postfix* | 'ε' | '%empty'
//	postfix      := primary ('*' | '+' | '?')*
//	primary      := ID | CHAR_LITERAL | '(' alternatives ')' | '{' alternatives '%' alternatives '}'
//
// An identifier for which isTerminal returns true refers to a terminal, and any other identifier
// refers to a non-terminal. row and col are the position of src in its enclosing file and are used
// to locate expressions and errors.
func ParseRHS(src string, isTerminal func(name string) bool, row, col int) (grammar.Expr, error) {
	p, err := newParser(src, isTerminal, row, col)
	if err != nil {
		return nil, err
	}
	return p.parse()
}

type parser struct {
	lex        *lexer
	isTerminal func(string) bool
	peekedTok  *token
	lastTok    *token
}

func newParser(src string, isTerminal func(string) bool, row, col int) (*parser, error) {
	lex, err := newLexer(strings.NewReader(src), row, col)
	if err != nil {
		return nil, err
	}
	if isTerminal == nil {
		isTerminal = func(string) bool { return false }
	}
	return &parser{
		lex:        lex,
		isTerminal: isTerminal,
	}, nil
}

func (p *parser) parse() (e grammar.Expr, retErr error) {
	defer func() {
		err := recover()
		if err != nil {
			specErr, ok := err.(*verr.SpecError)
			if !ok {
				panic(err)
			}
			e = nil
			retErr = specErr
		}
	}()

	e = p.parseAlternatives()
	if !p.consume(tokenKindEOF) {
		p.raiseUnexpected()
	}
	return e, nil
}

func (p *parser) parseAlternatives() grammar.Expr {
	first := p.parseSequence()
	if !p.consume(tokenKindOr) {
		return first
	}
	alts := []grammar.Expr{first}
	for {
		alts = append(alts, p.parseSequence())
		if !p.consume(tokenKindOr) {
			break
		}
	}
	pos := first.Position()
	return grammar.At(grammar.Alt(alts...), pos.Row, pos.Col)
}

func (p *parser) parseSequence() grammar.Expr {
	pos := p.peekPosition()
	if p.consume(tokenKindEmpty) {
		return grammar.At(grammar.Seq(), pos.Row, pos.Col)
	}

	var items []grammar.Expr
	for {
		item, spliced := p.parsePostfix()
		if item == nil {
			break
		}
		if spliced != nil {
			items = append(items, spliced.Items...)
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		p.raiseUnexpected()
	}
	return grammar.At(grammar.Seq(items...), pos.Row, pos.Col)
}

// parsePostfix returns nil at the end of a sequence. A multi-character literal without a postfix
// operator is also returned as spliced so that the enclosing sequence takes its characters as items.
func (p *parser) parsePostfix() (grammar.Expr, *grammar.SeqExpr) {
	pos := p.peekPosition()
	item := p.parsePrimary()
	if item == nil {
		return nil, nil
	}
	postfixed := false
	for {
		switch {
		case p.consume(tokenKindStar):
			item = grammar.At(grammar.Star(item), pos.Row, pos.Col)
		case p.consume(tokenKindPlus):
			item = grammar.At(grammar.Plus(item), pos.Row, pos.Col)
		case p.consume(tokenKindQuestion):
			item = grammar.At(grammar.Opt(item), pos.Row, pos.Col)
		default:
			if seq, ok := item.(*grammar.SeqExpr); ok && !postfixed && p.lastTok.kind == tokenKindChars {
				return item, seq
			}
			return item, nil
		}
		postfixed = true
	}
}

func (p *parser) parsePrimary() grammar.Expr {
	switch {
	case p.consume(tokenKindID):
		tok := p.lastTok
		if p.isTerminal(tok.text) {
			return grammar.At(grammar.T(tok.text), tok.pos.Row, tok.pos.Col)
		}
		return grammar.At(grammar.N(tok.text), tok.pos.Row, tok.pos.Col)
	case p.consume(tokenKindChars):
		tok := p.lastTok
		if len(tok.chars) == 1 {
			return grammar.At(grammar.C(tok.chars[0]), tok.pos.Row, tok.pos.Col)
		}
		items := make([]grammar.Expr, len(tok.chars))
		for i, c := range tok.chars {
			items[i] = grammar.At(grammar.C(c), tok.pos.Row, tok.pos.Col+1+i)
		}
		return grammar.At(grammar.Seq(items...), tok.pos.Row, tok.pos.Col)
	case p.consume(tokenKindLParen):
		pos := p.lastTok.pos
		e := p.parseAlternatives()
		if !p.consume(tokenKindRParen) {
			raiseSyntaxError(pos, synErrUnclosedGroup)
		}
		return e
	case p.consume(tokenKindLBrace):
		pos := p.lastTok.pos
		item := p.parseAlternatives()
		if !p.consume(tokenKindSep) {
			raiseSyntaxError(p.peekPosition(), synErrSepListNoSep)
		}
		sep := p.parseAlternatives()
		if !p.consume(tokenKindRBrace) {
			raiseSyntaxError(pos, synErrUnclosedSepList)
		}
		return grammar.At(grammar.SepList(item, sep), pos.Row, pos.Col)
	}
	return nil
}

func (p *parser) raiseUnexpected() {
	tok := p.peek()
	switch tok.kind {
	case tokenKindInvalid:
		raiseSyntaxError(tok.pos, synErrInvalidToken)
	case tokenKindEOF:
		raiseSyntaxError(tok.pos, synErrUnexpectedEOF)
	case tokenKindEmpty:
		raiseSyntaxError(tok.pos, synErrEmptyInSequence)
	default:
		raiseSyntaxError(tok.pos, synErrUnexpectedToken)
	}
}

func (p *parser) peek() *token {
	if p.peekedTok == nil {
		tok, err := p.lex.next()
		if err != nil {
			if specErr, ok := err.(*verr.SpecError); ok {
				panic(specErr)
			}
			panic(&verr.SpecError{
				Cause: err,
			})
		}
		p.peekedTok = tok
	}
	return p.peekedTok
}

func (p *parser) peekPosition() Position {
	return p.peek().pos
}

func (p *parser) consume(expected tokenKind) bool {
	tok := p.peek()
	if tok.kind != expected {
		return false
	}
	p.peekedTok = nil
	p.lastTok = tok
	return true
}
