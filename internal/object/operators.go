package object

// Operator method names. Syntax lowers to method invocations on these names;
// names starting with MacroSigil are expanded at compile time.
const (
	MacroSigil = "@"

	OpNeg    = "k:neg"
	OpBitNeg = "k:bitNeg"
	OpNot    = "k:not"

	OpNumber  = "k:number"
	OpBoolean = "k:boolean"
	OpString  = "k:string"
	OpInspect = "k:inspect"

	OpAnd      = "@k:and"
	OpOr       = "@k:or"
	OpCoalesce = "@k:coalesce"
	OpElse     = "@k:else"

	OpLt  = "k:lt"
	OpLte = "k:lte"
	OpGt  = "k:gt"
	OpGte = "k:gte"
	OpEq  = "k:eq"
	OpIs  = "k:is"
	OpNeq = "k:neq"

	OpBitXor         = "k:bitXor"
	OpBitAnd         = "k:bitAnd"
	OpBitOr          = "k:bitOr"
	OpBitShl         = "k:bitShl"
	OpBitShr         = "k:bitShr"
	OpBitShrUnsigned = "k:bitShrUnsigned"

	OpAdd = "k:add"
	OpSub = "k:sub"
	OpMul = "k:mul"
	OpDiv = "k:div"
	OpMod = "k:mod"
	OpPow = "k:pow"

	OpAt = "k:at"
)

// IsMacroName reports whether name refers to a macro.
func IsMacroName(name string) bool {
	return len(name) > len(MacroSigil) && name[:len(MacroSigil)] == MacroSigil
}
