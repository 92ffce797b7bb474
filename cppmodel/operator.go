package cppmodel

import "strings"

// Operator identifies an overloaded C++ operator.
type Operator int

const (
	OpNone Operator = iota
	OpConversion
	OpAssign
	OpAdd
	OpSub
	OpUnaryPlus
	OpNeg
	OpMul
	OpDiv
	OpRem
	OpInc
	OpIncPostfix
	OpDec
	OpDecPostfix
	OpEq
	OpNeq
	OpGt
	OpLt
	OpGe
	OpLe
	OpNot
	OpAnd
	OpOr
	OpBitNot
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpAddAssign
	OpSubAssign
	OpMulAssign
	OpDivAssign
	OpRemAssign
	OpBitAndAssign
	OpBitOrAssign
	OpBitXorAssign
	OpShlAssign
	OpShrAssign
	OpIndex
	OpIndirection
	OpAddressOf
	OpStructDeref
	OpPtrToMember
	OpCall
	OpComma
	OpNew
	OpNewArray
	OpDelete
	OpDeleteArray
)

type operatorInfo struct {
	suffix string
	// arity counts the implicit this argument; -1 allows any arity.
	arity int
	cname string
}

var operators = map[Operator]operatorInfo{
	OpAssign:       {"=", 2, "assign"},
	OpAdd:          {"+", 2, "add"},
	OpSub:          {"-", 2, "sub"},
	OpUnaryPlus:    {"+", 1, "unary_plus"},
	OpNeg:          {"-", 1, "neg"},
	OpMul:          {"*", 2, "mul"},
	OpDiv:          {"/", 2, "div"},
	OpRem:          {"%", 2, "rem"},
	OpInc:          {"++", 1, "inc"},
	OpIncPostfix:   {"++", 2, "inc_postfix"},
	OpDec:          {"--", 1, "dec"},
	OpDecPostfix:   {"--", 2, "dec_postfix"},
	OpEq:           {"==", 2, "eq"},
	OpNeq:          {"!=", 2, "neq"},
	OpGt:           {">", 2, "gt"},
	OpLt:           {"<", 2, "lt"},
	OpGe:           {">=", 2, "ge"},
	OpLe:           {"<=", 2, "le"},
	OpNot:          {"!", 1, "not"},
	OpAnd:          {"&&", 2, "and"},
	OpOr:           {"||", 2, "or"},
	OpBitNot:       {"~", 1, "bit_not"},
	OpBitAnd:       {"&", 2, "bit_and"},
	OpBitOr:        {"|", 2, "bit_or"},
	OpBitXor:       {"^", 2, "bit_xor"},
	OpShl:          {"<<", 2, "shl"},
	OpShr:          {">>", 2, "shr"},
	OpAddAssign:    {"+=", 2, "add_assign"},
	OpSubAssign:    {"-=", 2, "sub_assign"},
	OpMulAssign:    {"*=", 2, "mul_assign"},
	OpDivAssign:    {"/=", 2, "div_assign"},
	OpRemAssign:    {"%=", 2, "rem_assign"},
	OpBitAndAssign: {"&=", 2, "bit_and_assign"},
	OpBitOrAssign:  {"|=", 2, "bit_or_assign"},
	OpBitXorAssign: {"^=", 2, "bit_xor_assign"},
	OpShlAssign:    {"<<=", 2, "shl_assign"},
	OpShrAssign:    {">>=", 2, "shr_assign"},
	OpIndex:        {"[]", 2, "index"},
	OpIndirection:  {"*", 1, "indirection"},
	OpAddressOf:    {"&", 1, "address_of"},
	OpStructDeref:  {"->", 1, "struct_deref"},
	OpPtrToMember:  {"->*", 2, "ptr_to_member"},
	OpCall:         {"()", -1, "call"},
	OpComma:        {",", 2, "comma"},
	OpNew:          {"new", 2, "new"},
	OpNewArray:     {"new[]", 2, "new_array"},
	OpDelete:       {"delete", 2, "delete"},
	OpDeleteArray:  {"delete[]", 2, "delete_array"},
}

// CName is the identifier fragment used in wrapper symbols ("add" for operator+).
func (o Operator) CName() string {
	if o == OpConversion {
		return "convert"
	}
	return operators[o].cname
}

// Symbol is the C++ operator token ("+" for OpAdd).
func (o Operator) Symbol() string { return operators[o].suffix }

// Arity is the operand count including the implicit this argument, or -1.
func (o Operator) Arity() int {
	if o == OpConversion {
		return 1
	}
	return operators[o].arity
}

func (o Operator) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpConversion:
		return "conversion"
	}
	return "operator" + operators[o].suffix
}

// IsOperatorName reports whether a function name spells an operator.
func IsOperatorName(name string) bool {
	if !strings.HasPrefix(name, "operator") {
		return false
	}
	rest := name[len("operator"):]
	if rest == "" {
		return false
	}
	c := rest[0]
	return c == ' ' || !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9')
}

// DetectOperator classifies a function named "operator..." given its total
// operand count (parameters plus one for a non-static member). Conversion
// operators ("operator int") are returned with the parsed target type.
func DetectOperator(name string, operands int) (Operator, *TypeRef, bool) {
	if !IsOperatorName(name) {
		return OpNone, nil, false
	}
	rest := strings.TrimSpace(name[len("operator"):])
	rest = strings.ReplaceAll(rest, " ", "")
	known := false
	for op, info := range operators {
		if info.suffix != rest {
			continue
		}
		known = true
		if info.arity == -1 || info.arity == operands {
			return op, nil, true
		}
	}
	if known {
		return OpNone, nil, false
	}
	target, err := ParseType(strings.TrimSpace(name[len("operator"):]))
	if err == nil && operands == 1 {
		return OpConversion, &target, true
	}
	return OpNone, nil, false
}
