package code

import (
	"errors"
	"fmt"
)

// Validate checks the structural invariants of u and its nested units.
func Validate(u *Unit) error {
	var errs []error
	u.Walk(func(n *Unit) {
		if err := validateUnit(n); err != nil {
			errs = append(errs, fmt.Errorf("unit %s: %w", n.Name, err))
		}
	})
	return errors.Join(errs...)
}

func validateUnit(u *Unit) error {
	var errs []error
	n := len(u.Code)

	if len(u.Lines) != n || len(u.IBlock) != n {
		errs = append(errs, fmt.Errorf("lines=%d iblock=%d for %d instructions", len(u.Lines), len(u.IBlock), n))
	}
	if n == 0 || !terminates(u.Code[n-1].Op) {
		errs = append(errs, errors.New("instruction stream does not end in a terminator"))
	}

	for ip, in := range u.Code {
		i := int(in.Arg)
		switch {
		case in.Op >= opcodeCount:
			errs = append(errs, fmt.Errorf("ip %d: unknown opcode %d", ip, in.Op))
		case in.Op.IsJump() && i > n:
			errs = append(errs, fmt.Errorf("ip %d: %s target %d out of range", ip, in.Op, i))
		case in.Op == LOAD_CONST && i >= len(u.Consts):
			errs = append(errs, fmt.Errorf("ip %d: const %d out of range", ip, i))
		case in.Op.UsesName() && i >= len(u.Names):
			errs = append(errs, fmt.Errorf("ip %d: name %d out of range", ip, i))
		case in.Op.UsesLocal() && i >= len(u.Varnames):
			errs = append(errs, fmt.Errorf("ip %d: local %d out of range", ip, i))
		case in.Op == LOAD_FUNCTION && i >= len(u.Funcs):
			errs = append(errs, fmt.Errorf("ip %d: function %d out of range", ip, i))
		case (in.Op == LOOP_BREAK || in.Op == LOOP_CONTINUE) && (i >= len(u.Blocks) || !u.Blocks[i].Type.IsLoop()):
			errs = append(errs, fmt.Errorf("ip %d: %s does not target a loop", ip, in.Op))
		}
	}

	for i, b := range u.Blocks {
		if b.Parent >= int32(i) || b.Parent < -1 { // #nosec G115 -- block count fits
			errs = append(errs, fmt.Errorf("block %d: parent %d", i, b.Parent))
			continue
		}
		if b.Start > b.End || int(b.End) > n || int(b.Handler) > n {
			errs = append(errs, fmt.Errorf("block %d: range [%d,%d) handler %d", i, b.Start, b.End, b.Handler))
			continue
		}
		if b.Parent >= 0 {
			p := u.Blocks[b.Parent]
			if b.Start < p.Start || b.End > p.End {
				errs = append(errs, fmt.Errorf("block %d: [%d,%d) escapes parent [%d,%d)", i, b.Start, b.End, p.Start, p.End))
			}
			if b.Depth < p.Depth {
				errs = append(errs, fmt.Errorf("block %d: depth %d below parent %d", i, b.Depth, p.Depth))
			}
		}
		if b.Owned > b.Depth {
			errs = append(errs, fmt.Errorf("block %d: owns %d of %d slots", i, b.Owned, b.Depth))
		}
	}
	for ip := range min(len(u.IBlock), n) {
		bi := u.IBlock[ip]
		if bi < -1 || int(bi) >= len(u.Blocks) {
			errs = append(errs, fmt.Errorf("ip %d: block index %d", ip, bi))
			continue
		}
		if bi >= 0 {
			b := u.Blocks[bi]
			if uint32(ip) < b.Start || uint32(ip) >= b.End { // #nosec G115 -- ip < len(Code)
				errs = append(errs, fmt.Errorf("ip %d: outside its block %d [%d,%d)", ip, bi, b.Start, b.End))
			}
		}
	}
	return errors.Join(errs...)
}

func terminates(op Opcode) bool {
	switch op {
	case RETURN_VALUE, JUMP_ABSOLUTE, RAISE, RE_RAISE, END_FINALLY:
		return true
	}
	return false
}
