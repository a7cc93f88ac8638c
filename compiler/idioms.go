package compiler

import (
	"github.com/diysoho/jpexs-decompiler/pkg/bytecode"
)

const (
	printPrefix         = "print:#"
	printAsBitmapPrefix = "printasbitmap:#"
	levelPrefix         = "_level"
)

// urlFlags are the three GetURL2 fields.
type urlFlags struct {
	method        int
	loadVariables bool
	loadTarget    bool
}

type matchResult int

const (
	noMatch   matchResult = iota
	nearMatch             // operands have the idiom's shape, flags differ
	fullMatch
)

// Idiom folds a GetURL2 and the two values beneath it into one node.
type Idiom struct {
	Name string
	fold func(url, target Node, f urlFlags, o Origin) (Node, matchResult)
}

// idiomTable is consulted in order; the first full match wins.
var idiomTable = []Idiom{
	{Name: "printNum", fold: foldPrintNum},
	{Name: "printAsBitmapNum", fold: foldPrintAsBitmapNum},
	{Name: "print", fold: foldPrint},
	{Name: "printAsBitmap", fold: foldPrintAsBitmap},
	{Name: "loadMovieNum", fold: foldLoadMovieNum},
	{Name: "loadVariablesNum", fold: foldLoadVariablesNum},
}

// IdiomNames returns the idiom names in matching order.
func IdiomNames() []string {
	names := make([]string, len(idiomTable))
	for i, id := range idiomTable {
		names[i] = id.Name
	}
	return names
}

// stripPrefix matches Add2(Push prefix, expr) and returns expr. The prefix
// must be an exact string literal.
func stripPrefix(n Node, prefix string) (Node, bool) {
	add, ok := n.(*BinaryOp)
	if !ok || add.Op != bytecode.OpAdd2 {
		return nil, false
	}
	lit, ok := add.Left.(*Literal)
	if !ok || !lit.Value.IsString(prefix) {
		return nil, false
	}
	return add.Right, true
}

func isPrintURL(n Node) bool {
	_, p := stripPrefix(n, printPrefix)
	_, b := stripPrefix(n, printAsBitmapPrefix)
	return p || b
}

func result(f, want urlFlags) matchResult {
	if f == want {
		return fullMatch
	}
	return nearMatch
}

func foldPrintNum(url, target Node, f urlFlags, o Origin) (Node, matchResult) {
	bbox, ok := stripPrefix(url, printPrefix)
	if !ok {
		return nil, noMatch
	}
	num, ok := stripPrefix(target, levelPrefix)
	if !ok {
		return nil, noMatch
	}
	if r := result(f, urlFlags{}); r != fullMatch {
		return nil, r
	}
	return &PrintNum{OriginVal: o, Num: num, BoundingBox: bbox}, fullMatch
}

func foldPrintAsBitmapNum(url, target Node, f urlFlags, o Origin) (Node, matchResult) {
	bbox, ok := stripPrefix(url, printAsBitmapPrefix)
	if !ok {
		return nil, noMatch
	}
	num, ok := stripPrefix(target, levelPrefix)
	if !ok {
		return nil, noMatch
	}
	if r := result(f, urlFlags{}); r != fullMatch {
		return nil, r
	}
	return &PrintAsBitmapNum{OriginVal: o, Num: num, BoundingBox: bbox}, fullMatch
}

func foldPrint(url, target Node, f urlFlags, o Origin) (Node, matchResult) {
	bbox, ok := stripPrefix(url, printPrefix)
	if !ok {
		return nil, noMatch
	}
	if r := result(f, urlFlags{loadTarget: true}); r != fullMatch {
		return nil, r
	}
	return &Print{OriginVal: o, Target: target, BoundingBox: bbox}, fullMatch
}

func foldPrintAsBitmap(url, target Node, f urlFlags, o Origin) (Node, matchResult) {
	bbox, ok := stripPrefix(url, printAsBitmapPrefix)
	if !ok {
		return nil, noMatch
	}
	if r := result(f, urlFlags{loadTarget: true}); r != fullMatch {
		return nil, r
	}
	return &PrintAsBitmap{OriginVal: o, Target: target, BoundingBox: bbox}, fullMatch
}

func foldLoadMovieNum(url, target Node, f urlFlags, o Origin) (Node, matchResult) {
	if isPrintURL(url) {
		return nil, noMatch
	}
	num, ok := stripPrefix(target, levelPrefix)
	if !ok {
		return nil, noMatch
	}
	if f.loadVariables || f.loadTarget {
		return nil, nearMatch
	}
	return &LoadMovieNum{OriginVal: o, URL: url, Num: num, Method: f.method}, fullMatch
}

func foldLoadVariablesNum(url, target Node, f urlFlags, o Origin) (Node, matchResult) {
	num, ok := stripPrefix(target, levelPrefix)
	if !ok {
		return nil, noMatch
	}
	if !f.loadVariables || f.loadTarget {
		return nil, nearMatch
	}
	return &LoadVariablesNum{OriginVal: o, URL: url, Num: num, Method: f.method}, fullMatch
}

// foldIdiom tries the idiom table against the operands of a GetURL2. It
// returns the folded node, or nil and the name of the first idiom whose
// operand shape matched with different flags.
func foldIdiom(url, target Node, f urlFlags, o Origin, disabled map[string]bool) (Node, string) {
	near := ""
	for _, id := range idiomTable {
		if disabled[id.Name] {
			continue
		}
		n, r := id.fold(url, target, f, o)
		switch r {
		case fullMatch:
			return n, ""
		case nearMatch:
			if near == "" {
				near = id.Name
			}
		}
	}
	return nil, near
}
