package dcc

func bit(b bool, shift uint) byte {
	if b {
		return 1 << shift
	}
	return 0
}

// FunctionGroup1 controls F0 (headlight) and F1-F4, NMRA S-9.2.1
// group one instruction: 100DDDDD.
func FunctionGroup1(addr VehicleAddress, f0, f1, f2, f3, f4 bool) Request {
	instr := byte(0x80) | bit(f0, 4) | bit(f4, 3) | bit(f3, 2) | bit(f2, 1) | bit(f1, 0)
	return newRequest(append(addr.encode(), instr))
}

// FunctionGroup2 controls F5-F8, NMRA group two instruction: 1011DDDD.
func FunctionGroup2(addr VehicleAddress, f5, f6, f7, f8 bool) Request {
	instr := byte(0xB0) | bit(f8, 3) | bit(f7, 2) | bit(f6, 1) | bit(f5, 0)
	return newRequest(append(addr.encode(), instr))
}

// FunctionGroup3 controls F9-F12, NMRA group three instruction: 1010DDDD.
func FunctionGroup3(addr VehicleAddress, f9, f10, f11, f12 bool) Request {
	instr := byte(0xA0) | bit(f12, 3) | bit(f11, 2) | bit(f10, 1) | bit(f9, 0)
	return newRequest(append(addr.encode(), instr))
}

// packBits packs up to 8 function bits, fn[0] into bit 0, into one byte.
func packBits(fn []bool) byte {
	var b byte
	for i, v := range fn {
		if i >= 8 {
			break
		}
		if v {
			b |= 1 << uint(i)
		}
	}
	return b
}

// FunctionGroupExtended1 controls F13-F20: opcode 0xDE followed by one
// data byte, bit i = F(13+i).
func FunctionGroupExtended1(addr VehicleAddress, f13to20 []bool) Request {
	return newRequest(append(addr.encode(), 0xDE, packBits(f13to20)))
}

// FunctionGroupExtended2 controls F21-F28: opcode 0xDF followed by one
// data byte, bit i = F(21+i).
func FunctionGroupExtended2(addr VehicleAddress, f21to28 []bool) Request {
	return newRequest(append(addr.encode(), 0xDF, packBits(f21to28)))
}
