package hart

// encode_test.go assembles raw 32-bit instruction words for test fixtures,
// the inverse of decode(). It exists only for _test.go files in this
// package; production code never needs to encode.

func encodeR(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeI(imm uint32, rs1, funct3, rd, opcode uint32) uint32 {
	return (imm&0xfff)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func encodeS(imm uint32, rs2, rs1, funct3, opcode uint32) uint32 {
	lo := imm & 0x1f
	hi := (imm >> 5) & 0x7f

	return hi<<25 | rs2<<20 | rs1<<15 | funct3<<12 | lo<<7 | opcode
}

func encodeB(imm uint32, rs2, rs1, funct3, opcode uint32) uint32 {
	b12 := (imm >> 12) & 0x1
	b11 := (imm >> 11) & 0x1
	b10_5 := (imm >> 5) & 0x3f
	b4_1 := (imm >> 1) & 0xf

	return b12<<31 | b10_5<<25 | rs2<<20 | rs1<<15 | funct3<<12 | b4_1<<8 | b11<<7 | opcode
}

func encodeU(imm uint32, rd, opcode uint32) uint32 {
	return (imm &^ 0xfff) | rd<<7 | opcode
}

func encodeJ(imm uint32, rd, opcode uint32) uint32 {
	b20 := (imm >> 20) & 0x1
	b19_12 := (imm >> 12) & 0xff
	b11 := (imm >> 11) & 0x1
	b10_1 := (imm >> 1) & 0x3ff

	return b20<<31 | b10_1<<21 | b11<<20 | b19_12<<12 | rd<<7 | opcode
}

func encodeADDI(rd, rs1 Reg, imm int32) uint32 {
	return encodeI(uint32(imm), uint32(rs1), 0x0, uint32(rd), opOpImm)
}

func encodeADD(rd, rs1, rs2 Reg) uint32 {
	return encodeR(0x00, uint32(rs2), uint32(rs1), 0x0, uint32(rd), opOp)
}

func encodeSUB(rd, rs1, rs2 Reg) uint32 {
	return encodeR(0x20, uint32(rs2), uint32(rs1), 0x0, uint32(rd), opOp)
}

func encodeMUL(rd, rs1, rs2 Reg) uint32 {
	return encodeR(0x01, uint32(rs2), uint32(rs1), 0x0, uint32(rd), opOp)
}

func encodeMULH(rd, rs1, rs2 Reg) uint32 {
	return encodeR(0x01, uint32(rs2), uint32(rs1), 0x1, uint32(rd), opOp)
}

func encodeMULHU(rd, rs1, rs2 Reg) uint32 {
	return encodeR(0x01, uint32(rs2), uint32(rs1), 0x3, uint32(rd), opOp)
}

func encodeMULHSU(rd, rs1, rs2 Reg) uint32 {
	return encodeR(0x01, uint32(rs2), uint32(rs1), 0x2, uint32(rd), opOp)
}

func encodeDIV(rd, rs1, rs2 Reg) uint32 {
	return encodeR(0x01, uint32(rs2), uint32(rs1), 0x4, uint32(rd), opOp)
}

func encodeDIVW(rd, rs1, rs2 Reg) uint32 {
	return encodeR(0x01, uint32(rs2), uint32(rs1), 0x4, uint32(rd), opOp32)
}

func encodeREMW(rd, rs1, rs2 Reg) uint32 {
	return encodeR(0x01, uint32(rs2), uint32(rs1), 0x6, uint32(rd), opOp32)
}

func encodeBEQ(rs1, rs2 Reg, imm int32) uint32 {
	return encodeB(uint32(imm), uint32(rs2), uint32(rs1), 0x0, opBranch)
}

func encodeJAL(rd Reg, imm int32) uint32 {
	return encodeJ(uint32(imm), uint32(rd), opJAL)
}

func encodeLUI(rd Reg, imm int32) uint32 {
	return encodeU(uint32(imm), uint32(rd), opLUI)
}

func encodeLD(rd, rs1 Reg, imm int32) uint32 {
	return encodeI(uint32(imm), uint32(rs1), 0x3, uint32(rd), opLoad)
}

func encodeSD(rs1, rs2 Reg, imm int32) uint32 {
	return encodeS(uint32(imm), uint32(rs2), uint32(rs1), 0x3, opStore)
}

func encodeECALL() uint32 {
	return encodeI(0, 0, 0x0, 0, opSystem)
}

func encodeCSRRW(rd Reg, csr uint16, rs1 Reg) uint32 {
	return encodeI(uint32(csr), uint32(rs1), 0x1, uint32(rd), opSystem)
}
