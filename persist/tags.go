package persist

// Frozen tag bytes of the persisted IR format. A tag must never change
// meaning once assigned; new tags may be added. Changing an existing tag
// invalidates every stored blob and content hash.

// FormatVersion is recorded in every document. Bumping it invalidates
// existing blobs.
const FormatVersion uint8 = 1

// Operand tags.
const (
	tagReserved byte = 0x00

	// Literals
	tagFixnum          byte = 0x01
	tagBignum          byte = 0x02
	tagFloat           byte = 0x03
	tagString          byte = 0x04
	tagSymbol          byte = 0x05
	tagBoolean         byte = 0x06
	tagNil             byte = 0x07
	tagUndefined       byte = 0x08
	tagUnexecutableNil byte = 0x09

	// Composites
	tagArray          byte = 0x10
	tagHash           byte = 0x11
	tagCompoundString byte = 0x12
	tagBacktick       byte = 0x13
	tagRange          byte = 0x14
	tagRegexp         byte = 0x15
	tagDynamicSymbol  byte = 0x16
	tagDynamicRef     byte = 0x17

	// Variables
	tagLocal  byte = 0x20
	tagTemp   byte = 0x21
	tagGlobal byte = 0x22
	tagSelf   byte = 0x23

	// Meta objects
	tagClassMeta   byte = 0x28
	tagModuleMeta  byte = 0x29
	tagMethodMeta  byte = 0x2A
	tagClosureMeta byte = 0x2B
	tagCurrentMod  byte = 0x2C

	// Synthetic
	tagArgIndex      byte = 0x30
	tagSplat         byte = 0x31
	tagCompoundArray byte = 0x32
	tagSValue        byte = 0x33
	tagBreakResult   byte = 0x34
	tagMethAddr      byte = 0x35
	tagMethodHandle  byte = 0x36
	tagLabel         byte = 0x37
	tagBackref       byte = 0x38
	tagNthRef        byte = 0x39
	tagStandardError byte = 0x3A
	tagIRException   byte = 0x3B
)

// Instruction opcodes.
const (
	opCopy         byte = 0x01
	opCall         byte = 0x02
	opReceiveArg   byte = 0x03
	opReceiveBlock byte = 0x04
	opReturn       byte = 0x05
	opJump         byte = 0x06
	opBranch       byte = 0x07
	opLabel        byte = 0x08
	opPutGlobal    byte = 0x09
	opDefineMethod byte = 0x0A
	opDefineClass  byte = 0x0B
	opDefineModule byte = 0x0C
	opGuardMethod  byte = 0x0D
)
