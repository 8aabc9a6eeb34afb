package hart

// ops_alu.go implements the integer-computation instructions: RV64
// register-immediate and register-register arithmetic, logic, and shifts.
// See spec §4.7's "Arithmetic" rule.

func (h *Hart) execAlu(inst *Instruction) *Trap {
	rs1 := h.GetReg(inst.Rs1)

	var rs2 Word
	if inst.Class == ClassRR {
		rs2 = h.GetReg(inst.Rs2)
	} else {
		rs2 = inst.Imm
	}

	var result Word

	switch inst.Token {
	case TokADDI, TokADD:
		result = rs1 + rs2
	case TokSUB:
		result = rs1 - rs2
	case TokSLTI, TokSLT:
		if int64(rs1) < int64(rs2) {
			result = 1
		}
	case TokSLTIU, TokSLTU:
		if rs1 < rs2 {
			result = 1
		}
	case TokXORI, TokXOR:
		result = rs1 ^ rs2
	case TokORI, TokOR:
		result = rs1 | rs2
	case TokANDI, TokAND:
		result = rs1 & rs2
	case TokSLLI:
		result = rs1 << inst.Shamt
	case TokSLL:
		result = rs1 << (rs2 & 0x3f)
	case TokSRLI:
		result = rs1 >> inst.Shamt
	case TokSRL:
		result = rs1 >> (rs2 & 0x3f)
	case TokSRAI:
		result = Word(int64(rs1) >> inst.Shamt)
	case TokSRA:
		result = Word(int64(rs1) >> (rs2 & 0x3f))
	case TokMUL:
		result = rs1 * rs2
	case TokMULH:
		result = mulhSS(rs1, rs2)
	case TokMULHU:
		result = mulhUU(rs1, rs2)
	case TokMULHSU:
		result = mulhSU(rs1, rs2)
	case TokDIV:
		result = divS(rs1, rs2)
	case TokDIVU:
		result = divU(rs1, rs2)
	case TokREM:
		result = remS(rs1, rs2)
	case TokREMU:
		result = remU(rs1, rs2)
	default:
		return trapIllegalInstruction(inst.Word)
	}

	h.SetReg(inst.Rd, result)

	return nil
}

// execAluW implements the RV64 "W" forms: computed on the low 32 bits, the
// 32-bit result sign-extended to 64.
func (h *Hart) execAluW(inst *Instruction) *Trap {
	rs1 := uint32(h.GetReg(inst.Rs1))

	var rs2 uint32

	switch inst.Token {
	case TokADDIW, TokSLLIW, TokSRLIW, TokSRAIW:
		rs2 = uint32(inst.Imm)
	default:
		rs2 = uint32(h.GetReg(inst.Rs2))
	}

	var result uint32

	switch inst.Token {
	case TokADDIW, TokADDW:
		result = rs1 + rs2
	case TokSUBW:
		result = rs1 - rs2
	case TokSLLIW:
		result = rs1 << inst.Shamt
	case TokSLLW:
		result = rs1 << (rs2 & 0x1f)
	case TokSRLIW:
		result = rs1 >> inst.Shamt
	case TokSRLW:
		result = rs1 >> (rs2 & 0x1f)
	case TokSRAIW:
		result = uint32(int32(rs1) >> inst.Shamt)
	case TokSRAW:
		result = uint32(int32(rs1) >> (rs2 & 0x1f))
	case TokMULW:
		result = rs1 * rs2
	case TokDIVW:
		result = uint32(divS32(int32(rs1), int32(rs2)))
	case TokDIVUW:
		result = divU32(rs1, rs2)
	case TokREMW:
		result = uint32(remS32(int32(rs1), int32(rs2)))
	case TokREMUW:
		result = remU32(rs1, rs2)
	default:
		return trapIllegalInstruction(inst.Word)
	}

	h.SetReg(inst.Rd, SignExtend32(result))

	return nil
}
