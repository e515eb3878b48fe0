// interpreter_exec.go
//
// Statement execution. Every exec* function restores the Environment's
// scope-stack depth to its entry value on every exit path, including
// non-local signal propagation, per spec.md §8's scope invariant.
package script

import "fmt"

// execBlock runs a block in its own nested scope and guarantees the
// scope stack is back to its entry depth before returning, regardless of
// how the block exits.
func (in *Interpreter) execBlock(env *Environment, block *BlockStmt) (signal, *RuntimeError) {
	depth := env.Depth()
	env.Push()
	defer env.TruncateTo(depth)

	for _, stmt := range block.Stmts {
		sig, rerr := in.exec(env, stmt)
		if rerr != nil {
			return noSignal, rerr
		}
		if sig.kind != sigNone {
			return sig, nil
		}
	}
	return noSignal, nil
}

func (in *Interpreter) exec(env *Environment, stmt Stmt) (signal, *RuntimeError) {
	switch s := stmt.(type) {
	case *ExpressionStmt:
		_, rerr := in.eval(env, s.Expr)
		return noSignal, rerr

	case *VarDeclStmt:
		return in.execVarDecl(env, s)

	case *AssignStmt:
		return in.execAssign(env, s)

	case *IndexAssignStmt:
		return in.execIndexAssign(env, s)

	case *BlockStmt:
		return in.execBlock(env, s)

	case *IfStmt:
		return in.execIf(env, s)

	case *WhileStmt:
		return in.execWhile(env, s)

	case *DoWhileStmt:
		return in.execDoWhile(env, s)

	case *ForStmt:
		return in.execFor(env, s)

	case *SwitchStmt:
		return in.execSwitch(env, s)

	case *ReturnStmt:
		if s.Value == nil {
			return signal{kind: sigReturn, value: NewVoid()}, nil
		}
		v, rerr := in.eval(env, s.Value)
		if rerr != nil {
			return noSignal, rerr
		}
		return signal{kind: sigReturn, value: v}, nil

	case *BreakStmt:
		return signal{kind: sigBreak}, nil

	case *ContinueStmt:
		return signal{kind: sigContinue}, nil
	}
	return noSignal, in.runtimeErr(0, 0, CodeInternal, fmt.Sprintf("unhandled statement node %T", stmt))
}

func (in *Interpreter) execVarDecl(env *Environment, s *VarDeclStmt) (signal, *RuntimeError) {
	var v Value
	if s.Init != nil {
		val, rerr := in.eval(env, s.Init)
		if rerr != nil {
			return noSignal, rerr
		}
		converted, operr := Convert(val, s.Type)
		if operr != nil {
			return noSignal, in.wrap(s.Line, s.Column, operr)
		}
		v = converted
	} else {
		v = DefaultValue(s.Type)
	}
	env.Declare(s.Name, v)
	return noSignal, nil
}

// execAssign applies a compound or plain assignment to a local variable
// or, failing that, a registered external variable, per spec.md §4.4's
// assignment-target resolution order.
func (in *Interpreter) execAssign(env *Environment, s *AssignStmt) (signal, *RuntimeError) {
	rhs, rerr := in.eval(env, s.Value)
	if rerr != nil {
		return noSignal, rerr
	}

	current, ok := env.Lookup(s.Name)
	if !ok {
		current, ok = in.host.GetExternalVar(s.Name)
	}
	if !ok {
		return noSignal, in.runtimeErr(s.Line, s.Column, CodeUndefinedVariable, "undefined variable "+s.Name)
	}

	newVal := rhs
	if s.Op != "=" {
		combined, operr := BinaryArith(compoundBaseOp(s.Op), current, rhs)
		if operr != nil {
			return noSignal, in.wrap(s.Line, s.Column, operr)
		}
		newVal = combined
	}
	converted, operr := Convert(newVal, current.Type())
	if operr != nil {
		return noSignal, in.wrap(s.Line, s.Column, operr)
	}
	newVal = converted

	if env.Assign(s.Name, newVal) {
		return noSignal, nil
	}
	if in.host.SetExternalVar(s.Name, newVal) {
		return noSignal, nil
	}
	if _, isExternal := in.host.GetExternalVar(s.Name); isExternal {
		return noSignal, in.runtimeErr(s.Line, s.Column, CodeReadOnlyVariable, "external variable "+s.Name+" is read-only")
	}
	return noSignal, in.runtimeErr(s.Line, s.Column, CodeUndefinedVariable, "undefined variable "+s.Name)
}

func compoundBaseOp(op string) string {
	switch op {
	case "+=":
		return "+"
	case "-=":
		return "-"
	case "*=":
		return "*"
	case "/=":
		return "/"
	}
	return "?"
}

func (in *Interpreter) execIndexAssign(env *Environment, s *IndexAssignStmt) (signal, *RuntimeError) {
	target, rerr := in.eval(env, s.Target)
	if rerr != nil {
		return noSignal, rerr
	}
	if !target.IsArray() {
		return noSignal, in.runtimeErr(s.Line, s.Column, CodeScalarArrayMismatch, "index assignment on a non-array value")
	}
	idxVal, rerr := in.eval(env, s.Index)
	if rerr != nil {
		return noSignal, rerr
	}
	// spec.md §4.4: the index converts to unsigned 64-bit before bounds
	// checking, so a negative index wraps to a huge value and is rejected
	// by the same upper-bound comparison rather than a separate <0 check.
	i := idxVal.AsUint64()
	arr := target.Array()
	if i >= uint64(len(arr.Elements)) {
		return noSignal, in.runtimeErr(s.Line, s.Column, CodeIndexOutOfBounds,
			fmt.Sprintf("index %d out of bounds for array of length %d", i, len(arr.Elements)))
	}

	rhs, rerr := in.eval(env, s.Value)
	if rerr != nil {
		return noSignal, rerr
	}
	newVal := rhs
	if s.Op != "=" {
		combined, operr := BinaryArith(compoundBaseOp(s.Op), arr.Elements[i], rhs)
		if operr != nil {
			return noSignal, in.wrap(s.Line, s.Column, operr)
		}
		newVal = combined
	}
	converted, operr := Convert(newVal, Type{Base: arr.ElemBase})
	if operr != nil {
		return noSignal, in.wrap(s.Line, s.Column, operr)
	}
	arr.Elements[i] = converted
	return noSignal, nil
}

func (in *Interpreter) execIf(env *Environment, s *IfStmt) (signal, *RuntimeError) {
	cond, rerr := in.eval(env, s.Cond)
	if rerr != nil {
		return noSignal, rerr
	}
	if cond.Truthy() {
		return in.exec(env, s.Then)
	}
	if s.Else != nil {
		return in.exec(env, s.Else)
	}
	return noSignal, nil
}

func (in *Interpreter) execWhile(env *Environment, s *WhileStmt) (signal, *RuntimeError) {
	for {
		cond, rerr := in.eval(env, s.Cond)
		if rerr != nil {
			return noSignal, rerr
		}
		if !cond.Truthy() {
			return noSignal, nil
		}
		sig, rerr := in.exec(env, s.Body)
		if rerr != nil {
			return noSignal, rerr
		}
		switch sig.kind {
		case sigBreak:
			return noSignal, nil
		case sigReturn:
			return sig, nil
		}
	}
}

func (in *Interpreter) execDoWhile(env *Environment, s *DoWhileStmt) (signal, *RuntimeError) {
	for {
		sig, rerr := in.exec(env, s.Body)
		if rerr != nil {
			return noSignal, rerr
		}
		switch sig.kind {
		case sigBreak:
			return noSignal, nil
		case sigReturn:
			return sig, nil
		}
		cond, rerr := in.eval(env, s.Cond)
		if rerr != nil {
			return noSignal, rerr
		}
		if !cond.Truthy() {
			return noSignal, nil
		}
	}
}

func (in *Interpreter) execFor(env *Environment, s *ForStmt) (signal, *RuntimeError) {
	depth := env.Depth()
	env.Push()
	defer env.TruncateTo(depth)

	if s.Init != nil {
		sig, rerr := in.exec(env, s.Init)
		if rerr != nil {
			return noSignal, rerr
		}
		if sig.kind != sigNone {
			return sig, nil
		}
	}

	for {
		if s.Cond != nil {
			cond, rerr := in.eval(env, s.Cond)
			if rerr != nil {
				return noSignal, rerr
			}
			if !cond.Truthy() {
				return noSignal, nil
			}
		}

		sig, rerr := in.exec(env, s.Body)
		if rerr != nil {
			return noSignal, rerr
		}
		switch sig.kind {
		case sigBreak:
			return noSignal, nil
		case sigReturn:
			return sig, nil
		}

		if s.Incr != nil {
			sig, rerr := in.exec(env, s.Incr)
			if rerr != nil {
				return noSignal, rerr
			}
			if sig.kind != sigNone {
				return sig, nil
			}
		}
	}
}

// execSwitch implements spec.md §4.4's fallthrough switch: once a
// matching case (or default, if no case matches) is found, execution
// continues through every following case's statements until a break,
// return, or the end of the switch.
func (in *Interpreter) execSwitch(env *Environment, s *SwitchStmt) (signal, *RuntimeError) {
	subject, rerr := in.eval(env, s.Expr)
	if rerr != nil {
		return noSignal, rerr
	}

	depth := env.Depth()
	env.Push()
	defer env.TruncateTo(depth)

	start := -1
	defaultIdx := -1
	for i, c := range s.Cases {
		if c.IsDefault {
			defaultIdx = i
			continue
		}
		caseVal, rerr := in.eval(env, c.Value)
		if rerr != nil {
			return noSignal, rerr
		}
		_, eq := DeepEqual(subject, caseVal)
		if eq {
			start = i
			break
		}
	}
	if start == -1 {
		start = defaultIdx
	}
	if start == -1 {
		return noSignal, nil
	}

	for i := start; i < len(s.Cases); i++ {
		for _, stmt := range s.Cases[i].Stmts {
			sig, rerr := in.exec(env, stmt)
			if rerr != nil {
				return noSignal, rerr
			}
			switch sig.kind {
			case sigBreak:
				return noSignal, nil
			case sigReturn, sigContinue:
				return sig, nil
			}
		}
	}
	return noSignal, nil
}
