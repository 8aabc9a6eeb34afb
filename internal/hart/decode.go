package hart

// decode.go extracts operands from a 32-bit instruction word once its Class
// and Token are known, and implements the fixed-capacity decode cache keyed
// on the word itself. See spec §4.6 and §4.8's "Decode cache" note.

// Instruction is the decoded form of one 32-bit instruction word: enough to
// dispatch to an executor function without re-parsing the bit fields.
type Instruction struct {
	Word  uint32
	Class Class
	Token Token

	Rd, Rs1, Rs2 Reg
	Imm          Word // sign-extended immediate (I/S/B/U/J, as Class implies).
	Shamt        uint8
	CSR          uint16
}

// decode classifies word and extracts its operands. Unrecognised encodings
// return an Instruction with Class/Token == Undefined.
func decode(word uint32) Instruction {
	inst := Instruction{Word: word}

	for _, e := range instrTable {
		if e.match(word) {
			inst.Class = e.class
			inst.Token = e.token

			break
		}
	}

	inst.Rd = Reg((word >> 7) & 0x1f)
	inst.Rs1 = Reg((word >> 15) & 0x1f)
	inst.Rs2 = Reg((word >> 20) & 0x1f)

	switch inst.Class {
	case ClassRI:
		inst.Imm = immI(word)
		if inst.Token == TokSLLI || inst.Token == TokSRLI || inst.Token == TokSRAI {
			inst.Shamt = uint8(word>>20) & 0x3f
		}
	case ClassRV64W:
		switch inst.Token {
		case TokADDIW:
			inst.Imm = immI(word)
		case TokSLLIW, TokSRLIW, TokSRAIW:
			inst.Shamt = uint8(word>>20) & 0x1f
			if inst.Shamt&0x20 != 0 {
				inst.Class = ClassUndefined
				inst.Token = TokUndefined
			}
		}
	case ClassLoad:
		inst.Imm = immI(word)
	case ClassStore:
		inst.Imm = immS(word)
	case ClassBranch:
		inst.Imm = immB(word)
	case ClassLUI, ClassAUIPC:
		inst.Imm = immU(word)
	case ClassJAL:
		inst.Imm = immJ(word)
	case ClassJALR:
		inst.Imm = immI(word)
	case ClassSystem:
		switch inst.Token {
		case TokCSRRW, TokCSRRS, TokCSRRC, TokCSRRWI, TokCSRRSI, TokCSRRCI:
			inst.CSR = uint16(word >> 20)
			if inst.Token == TokCSRRWI || inst.Token == TokCSRRSI || inst.Token == TokCSRRCI {
				// The rs1 field holds a zero-extended 5-bit immediate, not a register.
				inst.Imm = Word((word >> 15) & 0x1f)
			}
		case TokSFENCEVMA:
			// rs1/rs2 already populated: vaddr and asid sources.
		}
	}

	return inst
}

func immI(word uint32) Word {
	v := int32(word) >> 20
	return Word(int64(v))
}

func immS(word uint32) Word {
	v := (int32(word) >> 25 << 5) | int32((word>>7)&0x1f)
	v = v << 20 >> 20
	return Word(int64(v))
}

func immB(word uint32) Word {
	v := uint32(0)
	v |= (word >> 31) << 12
	v |= ((word >> 7) & 0x1) << 11
	v |= ((word >> 25) & 0x3f) << 5
	v |= ((word >> 8) & 0xf) << 1

	signed := int32(v<<19) >> 19

	return Word(int64(signed))
}

func immU(word uint32) Word {
	return Word(SignExtend32(word & 0xfffff000))
}

func immJ(word uint32) Word {
	v := uint32(0)
	v |= (word >> 31) << 20
	v |= ((word >> 12) & 0xff) << 12
	v |= ((word >> 20) & 0x1) << 11
	v |= ((word >> 21) & 0x3ff) << 1

	signed := int32(v<<11) >> 11

	return Word(int64(signed))
}

// decodeCacheSize-entry LRU cache keyed on the raw instruction word: the
// decoded operation is PC-independent, so the same word always decodes the
// same way regardless of where it is fetched from.
type decodeCache struct {
	entries map[uint32]Instruction
	order   []uint32 // order[0] is least recently used.
}

func (c *decodeCache) reset() {
	c.entries = make(map[uint32]Instruction, decodeCacheSize)
	c.order = c.order[:0]
}

func (c *decodeCache) lookup(word uint32) (Instruction, bool) {
	if c.entries == nil {
		c.reset()
	}

	inst, ok := c.entries[word]
	if ok {
		c.touch(word)
	}

	return inst, ok
}

func (c *decodeCache) insert(word uint32, inst Instruction) {
	if c.entries == nil {
		c.reset()
	}

	if _, exists := c.entries[word]; !exists && len(c.entries) >= decodeCacheSize {
		evict := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, evict)
	}

	c.entries[word] = inst
	c.touch(word)
}

func (c *decodeCache) touch(word uint32) {
	for i, w := range c.order {
		if w == word {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}

	c.order = append(c.order, word)
}
