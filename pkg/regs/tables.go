package regs

var x64Registers = []regSpec{
	{"rax", 8}, {"rcx", 8}, {"rdx", 8}, {"rbx", 8},
	{"rsp", 8}, {"rbp", 8}, {"rsi", 8}, {"rdi", 8},
	{"r8", 8}, {"r9", 8}, {"r10", 8}, {"r11", 8},
	{"r12", 8}, {"r13", 8}, {"r14", 8}, {"r15", 8},
	{"rip", 8}, {"rflags", 8},
	{"fsbase", 8}, {"gsbase", 8},
	{"es", 2}, {"cs", 2}, {"ss", 2}, {"ds", 2}, {"fs", 2}, {"gs", 2},
}

var x64Aliases = func() []aliasSpec {
	a := []aliasSpec{
		{"eip", "rip", 0, 4}, {"ip", "rip", 0, 2},
		{"eflags", "rflags", 0, 4},
	}
	legacy := []struct{ r, e, x, l, h string }{
		{"rax", "eax", "ax", "al", "ah"},
		{"rcx", "ecx", "cx", "cl", "ch"},
		{"rdx", "edx", "dx", "dl", "dh"},
		{"rbx", "ebx", "bx", "bl", "bh"},
		{"rsp", "esp", "sp", "spl", ""},
		{"rbp", "ebp", "bp", "bpl", ""},
		{"rsi", "esi", "si", "sil", ""},
		{"rdi", "edi", "di", "dil", ""},
	}
	for _, g := range legacy {
		a = append(a,
			aliasSpec{g.e, g.r, 0, 4},
			aliasSpec{g.x, g.r, 0, 2},
			aliasSpec{g.l, g.r, 0, 1},
		)
		if g.h != "" {
			a = append(a, aliasSpec{g.h, g.r, 1, 1})
		}
	}
	for _, r := range []string{"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"} {
		a = append(a,
			aliasSpec{r + "d", r, 0, 4},
			aliasSpec{r + "w", r, 0, 2},
			aliasSpec{r + "b", r, 0, 1},
		)
	}
	return a
}()

var x86Registers = []regSpec{
	{"eax", 4}, {"ecx", 4}, {"edx", 4}, {"ebx", 4},
	{"esp", 4}, {"ebp", 4}, {"esi", 4}, {"edi", 4},
	{"eip", 4}, {"eflags", 4},
	{"es", 2}, {"cs", 2}, {"ss", 2}, {"ds", 2}, {"fs", 2}, {"gs", 2},
	{"fsbase", 4}, {"gsbase", 4},
}

var x86Aliases = []aliasSpec{
	{"ax", "eax", 0, 2}, {"al", "eax", 0, 1}, {"ah", "eax", 1, 1},
	{"cx", "ecx", 0, 2}, {"cl", "ecx", 0, 1}, {"ch", "ecx", 1, 1},
	{"dx", "edx", 0, 2}, {"dl", "edx", 0, 1}, {"dh", "edx", 1, 1},
	{"bx", "ebx", 0, 2}, {"bl", "ebx", 0, 1}, {"bh", "ebx", 1, 1},
	{"sp", "esp", 0, 2}, {"bp", "ebp", 0, 2},
	{"si", "esi", 0, 2}, {"di", "edi", 0, 2},
	{"ip", "eip", 0, 2}, {"flags", "eflags", 0, 2},
}
