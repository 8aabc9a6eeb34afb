package hart

// ops_branch.go implements the conditional branches. See spec §4.7's
// "Branches" rule: target is pc + sign_ext(imm); a misaligned target traps
// without updating pc.

func (h *Hart) execBranch(inst *Instruction) *Trap {
	rs1 := h.GetReg(inst.Rs1)
	rs2 := h.GetReg(inst.Rs2)

	var taken bool

	switch inst.Token {
	case TokBEQ:
		taken = rs1 == rs2
	case TokBNE:
		taken = rs1 != rs2
	case TokBLT:
		taken = int64(rs1) < int64(rs2)
	case TokBGE:
		taken = int64(rs1) >= int64(rs2)
	case TokBLTU:
		taken = rs1 < rs2
	case TokBGEU:
		taken = rs1 >= rs2
	default:
		return trapIllegalInstruction(inst.Word)
	}

	if !taken {
		return nil
	}

	target := h.GetPC() - 4 + inst.Imm
	if target&0x3 != 0 {
		return trapInstrMisaligned(target)
	}

	h.SetPC(target)

	return nil
}
