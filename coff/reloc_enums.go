package coff

// Section relocation type codes are architecture-specific: the same u16
// value means different things depending on FileHeader.Machine (spec.md
// §9 Design Notes). Keep the on-disk value as a raw uint16 (Relocation.Type)
// and use these decoders rather than a single overlapping enum.

// RelocTypeI386 decodes a relocation Type for MachineI386.
type RelocTypeI386 uint16

const (
	RelI386Absolute RelocTypeI386 = 0x0000
	RelI386Dir16    RelocTypeI386 = 0x0001
	RelI386Rel16    RelocTypeI386 = 0x0002
	RelI386Dir32    RelocTypeI386 = 0x0006
	RelI386Dir32NB  RelocTypeI386 = 0x0007
	RelI386Seg12    RelocTypeI386 = 0x0009
	RelI386Section  RelocTypeI386 = 0x000A
	RelI386SecRel   RelocTypeI386 = 0x000B
	RelI386Rel32    RelocTypeI386 = 0x0014
)

// RelocTypeAMD64 decodes a relocation Type for MachineAMD64.
type RelocTypeAMD64 uint16

const (
	RelAMD64Absolute RelocTypeAMD64 = 0x0000
	RelAMD64Addr64   RelocTypeAMD64 = 0x0001
	RelAMD64Addr32   RelocTypeAMD64 = 0x0002
	RelAMD64Addr32NB RelocTypeAMD64 = 0x0003
	RelAMD64Rel32    RelocTypeAMD64 = 0x0004
	RelAMD64Section  RelocTypeAMD64 = 0x000A
	RelAMD64SecRel   RelocTypeAMD64 = 0x000B
)

// RelocTypeARM64 decodes a relocation Type for MachineARM64.
type RelocTypeARM64 uint16

const (
	RelARM64Absolute RelocTypeARM64 = 0x0000
	RelARM64Addr32   RelocTypeARM64 = 0x0001
	RelARM64Addr32NB RelocTypeARM64 = 0x0002
	RelARM64Branch26 RelocTypeARM64 = 0x0003
	RelARM64Section  RelocTypeARM64 = 0x0006
	RelARM64SecRel   RelocTypeARM64 = 0x0007
)

// DecodeRelocType returns the relocation's meaning for the given machine
// as a human-readable name, without collapsing distinct architectures
// into one numeric space.
func DecodeRelocType(machine Machine, t uint16) string {
	switch machine {
	case MachineI386:
		switch RelocTypeI386(t) {
		case RelI386Absolute:
			return "ABSOLUTE"
		case RelI386Dir16:
			return "DIR16"
		case RelI386Rel16:
			return "REL16"
		case RelI386Dir32:
			return "DIR32"
		case RelI386Dir32NB:
			return "DIR32NB"
		case RelI386Seg12:
			return "SEG12"
		case RelI386Section:
			return "SECTION"
		case RelI386SecRel:
			return "SECREL"
		case RelI386Rel32:
			return "REL32"
		}
	case MachineAMD64:
		switch RelocTypeAMD64(t) {
		case RelAMD64Absolute:
			return "ABSOLUTE"
		case RelAMD64Addr64:
			return "ADDR64"
		case RelAMD64Addr32:
			return "ADDR32"
		case RelAMD64Addr32NB:
			return "ADDR32NB"
		case RelAMD64Rel32:
			return "REL32"
		case RelAMD64Section:
			return "SECTION"
		case RelAMD64SecRel:
			return "SECREL"
		}
	case MachineARM64:
		switch RelocTypeARM64(t) {
		case RelARM64Absolute:
			return "ABSOLUTE"
		case RelARM64Addr32:
			return "ADDR32"
		case RelARM64Addr32NB:
			return "ADDR32NB"
		case RelARM64Branch26:
			return "BRANCH26"
		case RelARM64Section:
			return "SECTION"
		case RelARM64SecRel:
			return "SECREL"
		}
	}
	return "UNKNOWN"
}

// BaseRelocType is the type nibble of a PE base relocation entry
// (spec.md §3/§8). All architectures share one numeric space, but
// values 5, 7 and 8 carry architecture-specific meanings (the aliases
// below), so they can only be decoded knowing the target machine.
type BaseRelocType uint16

const (
	ImageRelBasedAbsolute      BaseRelocType = 0
	ImageRelBasedHigh          BaseRelocType = 1
	ImageRelBasedLow           BaseRelocType = 2
	ImageRelBasedHighLow       BaseRelocType = 3
	ImageRelBasedHighAdj       BaseRelocType = 4
	ImageRelBasedMIPSJmpAddr   BaseRelocType = 5
	ImageRelBasedArmMov32      BaseRelocType = 5
	ImageRelBasedRiscvHi20     BaseRelocType = 5
	ImageRelBasedThumbMov32    BaseRelocType = 7
	ImageRelBasedRiscvLow12I   BaseRelocType = 7
	ImageRelBasedRiscvLow12S   BaseRelocType = 8
	ImageRelBasedLoongArch32MC BaseRelocType = 8
	ImageRelBasedMIPSJmpAddr16 BaseRelocType = 9
	ImageRelBasedDir64         BaseRelocType = 10
)
