package opcode

// ---------------------------------------------------------------------------
// Built-in entries
// ---------------------------------------------------------------------------

const (
	ti  = ThreadInit
	tk  = ThreadK
	ta  = ThreadA
	tik = ThreadInit | ThreadK
	tia = ThreadInit | ThreadA
)

// Builtins returns a fresh table holding the engine's built-in opcodes.
func Builtins() *Table {
	t := NewTable()
	for _, e := range builtinEntries() {
		t.Add(e)
	}
	return t
}

func builtinEntries() []*Entry {
	return []*Entry{
		// assignment and initialisation
		{Name: "=.i", Thread: ti, OutTypes: "i", InTypes: "i", Init: assign},
		{Name: "=.k", Thread: tk, OutTypes: "k", InTypes: "k", KPerf: assign},
		{Name: "=.a", Thread: ta, OutTypes: "a", InTypes: "x", APerf: assignAudio},
		{Name: "=.S", Thread: ti, OutTypes: "S", InTypes: "S", Init: assignString},
		{Name: "init.i", Thread: ti, OutTypes: "i", InTypes: "i", Init: assign},
		{Name: "init.k", Thread: ti, OutTypes: "k", InTypes: "i", Init: assign},
		{Name: "init.a", Thread: ti, OutTypes: "a", InTypes: "i", Init: assignAudio},
		{Name: "init.S", Thread: ti, OutTypes: "S", InTypes: "S", Init: assignString},

		// arithmetic
		{Name: "add.i", Thread: ti, OutTypes: "i", InTypes: "ii", Init: arith(opAdd)},
		{Name: "add.k", Thread: tk, OutTypes: "k", InTypes: "kk", KPerf: arith(opAdd)},
		{Name: "add.a", Thread: ta, OutTypes: "a", InTypes: "xx", APerf: arithAudio(opAdd)},
		{Name: "sub.i", Thread: ti, OutTypes: "i", InTypes: "ii", Init: arith(opSub)},
		{Name: "sub.k", Thread: tk, OutTypes: "k", InTypes: "kk", KPerf: arith(opSub)},
		{Name: "sub.a", Thread: ta, OutTypes: "a", InTypes: "xx", APerf: arithAudio(opSub)},
		{Name: "mul.i", Thread: ti, OutTypes: "i", InTypes: "ii", Init: arith(opMul)},
		{Name: "mul.k", Thread: tk, OutTypes: "k", InTypes: "kk", KPerf: arith(opMul)},
		{Name: "mul.a", Thread: ta, OutTypes: "a", InTypes: "xx", APerf: arithAudio(opMul)},
		{Name: "div.i", Thread: ti, OutTypes: "i", InTypes: "ii", Init: arith(opDiv)},
		{Name: "div.k", Thread: tk, OutTypes: "k", InTypes: "kk", KPerf: arith(opDiv)},
		{Name: "div.a", Thread: ta, OutTypes: "a", InTypes: "xx", APerf: arithAudio(opDiv)},

		// signal generators and output
		{Name: "line.k", Thread: tik, OutTypes: "k", InTypes: "iii", Init: lineInit, KPerf: lineK},
		{Name: "line.a", Thread: tia, OutTypes: "a", InTypes: "iii", Init: lineInit, APerf: lineA},
		{Name: "out", Thread: ta, InTypes: "y", APerf: out},
		{Name: "delay", Thread: tia, OutTypes: "a", InTypes: "ai", Init: delayInit, APerf: delayPerf},

		// control flow
		{Name: "goto", Thread: tik, InTypes: "l", Init: jump, KPerf: jump},
		{Name: "igoto", Thread: ti, InTypes: "l", Init: jump},
		{Name: "kgoto", Thread: tk, InTypes: "l", KPerf: jump},
		{Name: "cigoto", Thread: ti, InTypes: "il", Init: condJump},
		{Name: "ckgoto", Thread: tk, InTypes: "kl", KPerf: condJump},
		{Name: "turnoff", Thread: tk, KPerf: turnoff},

		// event generation
		{Name: "schedule", Thread: ti, InTypes: "Tiim", Init: schedule, RefersInstr: true},

		// messages and files
		{Name: "print", Thread: ti, InTypes: "m", Init: printValues},
		{Name: "fprints", Thread: ti, InTypes: "SSm", Init: fprints},

		// bus channels
		{Name: "chnget.i", Thread: ti, OutTypes: "i", InTypes: "S", Init: chngetInit},
		{Name: "chnget.k", Thread: tik, OutTypes: "k", InTypes: "S", Init: chngetInit, KPerf: chngetPerf},
		{Name: "chnget.a", Thread: tia, OutTypes: "a", InTypes: "S", Init: chngetAudioInit, APerf: chngetAudio},
		{Name: "chnget.S", Thread: tik, OutTypes: "S", InTypes: "S", Init: chngetStrInit, KPerf: chngetStr},
		{Name: "chnset.i", Thread: ti, InTypes: "iS", Init: chnsetInit},
		{Name: "chnset.k", Thread: tik, InTypes: "kS", Init: chnsetInit, KPerf: chnsetPerf},
		{Name: "chnset.a", Thread: tia, InTypes: "aS", Init: chnsetAudioInit, APerf: chnsetAudio},
		{Name: "chnset.S", Thread: tik, InTypes: "SS", Init: chnsetStrInit, KPerf: chnsetStr},

		// function tables
		{Name: "table.i", Thread: ti, OutTypes: "i", InTypes: "ii", Init: tableRead},
		{Name: "table.k", Thread: tk, OutTypes: "k", InTypes: "kk", KPerf: tableRead},

		// user-defined opcode plumbing
		{Name: "xin", Thread: tik, OutTypes: "*", Init: xin, KPerf: xin},
		{Name: "xout", Thread: tik, InTypes: "*", Init: xout, KPerf: xout},
	}
}
