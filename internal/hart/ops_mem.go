package hart

// ops_mem.go implements load and store instructions. See spec §4.7's
// "Loads/stores" rule: address is rs1 + sign_ext(imm), and an access that
// crosses a 4 KiB page fails as misaligned here, before the MMU is
// consulted, whether or not translation is active.

func (h *Hart) execLoad(inst *Instruction) *Trap {
	addr := h.GetReg(inst.Rs1) + inst.Imm

	var size int

	switch inst.Token {
	case TokLB, TokLBU:
		size = 1
	case TokLH, TokLHU:
		size = 2
	case TokLW, TokLWU:
		size = 4
	case TokLD:
		size = 8
	}

	if pageCrosses(addr, size) {
		return trapLoadMisaligned(addr)
	}

	v, trap := h.Load(addr, size)
	if trap != nil {
		return trap
	}

	var result Word

	switch inst.Token {
	case TokLB:
		result = Word(int64(int8(v)))
	case TokLH:
		result = Word(int64(int16(v)))
	case TokLW:
		result = Word(int64(int32(v)))
	case TokLBU:
		result = Word(uint8(v))
	case TokLHU:
		result = Word(uint16(v))
	case TokLWU:
		result = Word(uint32(v))
	case TokLD:
		result = Word(v)
	}

	h.SetReg(inst.Rd, result)

	return nil
}

func (h *Hart) execStore(inst *Instruction) *Trap {
	addr := h.GetReg(inst.Rs1) + inst.Imm
	val := h.GetReg(inst.Rs2)

	var size int

	switch inst.Token {
	case TokSB:
		size = 1
	case TokSH:
		size = 2
	case TokSW:
		size = 4
	case TokSD:
		size = 8
	}

	if pageCrosses(addr, size) {
		return trapStoreMisaligned(addr)
	}

	return h.Store(addr, size, uint64(val))
}
