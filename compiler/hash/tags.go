package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the tree serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// every baseline taken by an earlier build.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing tree hashes.
const HashVersion byte = 1

// Node tags. Each tag uniquely identifies a node variant in the serialized
// byte stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Values
	TagLiteral     byte = 0x01
	TagGetVariable byte = 0x02
	TagGetMember   byte = 0x03
	TagBinaryOp    byte = 0x04
	TagUnaryOp     byte = 0x05
	TagOperation   byte = 0x06

	// Calls
	TagCallFunction byte = 0x08
	TagCallMethod   byte = 0x09

	// Values that cross a branch or a statement
	TagTernary    byte = 0x0A
	TagStackValue byte = 0x0B

	// Statements
	TagSetVariable byte = 0x10
	TagSetMember   byte = 0x11
	TagExprStmt    byte = 0x12
	TagLeftover    byte = 0x13
	TagTrace       byte = 0x14
	TagReturn      byte = 0x15
	TagAction      byte = 0x16
	TagGetURL2     byte = 0x17

	// Idioms
	TagPrintNum         byte = 0x20
	TagPrintAsBitmapNum byte = 0x21
	TagPrint            byte = 0x22
	TagPrintAsBitmap    byte = 0x23
	TagLoadMovieNum     byte = 0x24
	TagLoadVariablesNum byte = 0x25

	// Control flow
	TagIf     byte = 0x30
	TagWhile  byte = 0x31
	TagJump   byte = 0x32
	TagBranch byte = 0x33
	TagLabel  byte = 0x34
	TagRaw    byte = 0x35

	// Statement list header
	TagList byte = 0x40

	// Reserved 0xFE-0xFF
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagLiteral, TagGetVariable, TagGetMember, TagBinaryOp, TagUnaryOp, TagOperation,
	TagCallFunction, TagCallMethod,
	TagTernary, TagStackValue,
	TagSetVariable, TagSetMember, TagExprStmt, TagLeftover, TagTrace, TagReturn,
	TagAction, TagGetURL2,
	TagPrintNum, TagPrintAsBitmapNum, TagPrint, TagPrintAsBitmap,
	TagLoadMovieNum, TagLoadVariablesNum,
	TagIf, TagWhile, TagJump, TagBranch, TagLabel, TagRaw,
	TagList,
}
