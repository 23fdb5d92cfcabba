package query

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"peepsolve/internal/ir"
)

var kindNames = map[string]ir.Kind{
	"var": ir.Var, "const": ir.Const, "untypedconst": ir.UntypedConst, "phi": ir.Phi,
	"and": ir.And, "or": ir.Or, "xor": ir.Xor, "add": ir.Add, "sub": ir.Sub, "mul": ir.Mul,
	"shl": ir.Shl, "lshr": ir.LShr, "ashr": ir.AShr,
	"eq": ir.Eq, "ne": ir.Ne, "ult": ir.Ult, "ule": ir.Ule, "slt": ir.Slt, "sle": ir.Sle,
	"select": ir.Select, "extractvalue": ir.ExtractValue,
	"uaddwithoverflow": ir.UAddWithOverflow, "uaddo": ir.UAddO,
}

// ParseRHS parses text produced by Printer.SerializeRHS back into a
// live node interned in c. This is the "external parser" spec.md S1
// names (ParseReplacementRHS); a parse failure surfaces as a
// protocol_error to the cache decorator that called it.
func ParseRHS(c *ir.Context, text string) (*ir.Inst, error) {
	stmts := strings.Split(strings.TrimRight(text, ";"), ";")
	if len(stmts) == 0 {
		return nil, errors.New("empty replacement text")
	}
	nodes := make(map[int]*ir.Inst)
	var rootID = -1
	blocks := make(map[string]*ir.Block)
	for _, stmt := range stmts {
		if stmt == "" {
			continue
		}
		if strings.HasPrefix(stmt, "root=#") {
			id, err := strconv.Atoi(strings.TrimPrefix(stmt, "root=#"))
			if err != nil {
				return nil, errors.Wrapf(err, "parsing root marker %q", stmt)
			}
			rootID = id
			continue
		}
		id, n, err := parseStmt(c, stmt, nodes, blocks)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing statement %q", stmt)
		}
		nodes[id] = n
	}
	if rootID < 0 {
		return nil, errors.New("missing root marker")
	}
	root, ok := nodes[rootID]
	if !ok {
		return nil, errors.Errorf("root #%d not defined", rootID)
	}
	return root, nil
}

func parseStmt(c *ir.Context, stmt string, nodes map[int]*ir.Inst, blocks map[string]*ir.Block) (int, *ir.Inst, error) {
	eq := strings.Index(stmt, "=")
	if eq < 0 || stmt[0] != '#' {
		return 0, nil, errors.Errorf("malformed node statement")
	}
	id, err := strconv.Atoi(stmt[1:eq])
	if err != nil {
		return 0, nil, err
	}
	body := stmt[eq+1:]
	parts := strings.SplitN(body, ":", 2)
	kind, ok := kindNames[parts[0]]
	if !ok {
		return 0, nil, errors.Errorf("unknown opcode %q", parts[0])
	}
	rest := ""
	if len(parts) > 1 {
		rest = parts[1]
	}
	switch kind {
	case ir.Const, ir.UntypedConst:
		fields := strings.SplitN(rest, ":", 2)
		w, err := strconv.Atoi(fields[0])
		if err != nil {
			return 0, nil, err
		}
		v, ok := new(big.Int).SetString(fields[1], 10)
		if !ok {
			return 0, nil, errors.Errorf("bad constant value %q", fields[1])
		}
		if kind == ir.Const {
			return id, c.GetConst(w, v), nil
		}
		return id, c.GetUntypedConst(v), nil
	case ir.Var:
		fields := strings.SplitN(rest, ":", 3)
		if len(fields) != 3 {
			return 0, nil, errors.Errorf("malformed var %q", rest)
		}
		w, err := strconv.Atoi(fields[0])
		if err != nil {
			return 0, nil, err
		}
		demanded, ok := new(big.Int).SetString(fields[2], 10)
		if !ok {
			return 0, nil, errors.Errorf("bad demanded mask %q", fields[2])
		}
		return id, c.GetVarWithDemanded(w, fields[1], demanded), nil
	case ir.Phi:
		w, blockName, preds, childIDs, err := parsePhiRest(rest)
		if err != nil {
			return 0, nil, err
		}
		block, ok := blocks[blockName]
		if !ok {
			block = &ir.Block{Name: blockName, Preds: preds}
			blocks[blockName] = block
		}
		ops, err := resolveChildren(childIDs, nodes)
		if err != nil {
			return 0, nil, err
		}
		return id, c.GetPhi(w, block, ops), nil
	case ir.ExtractValue:
		w, idx, childIDs, err := parseExtractRest(rest)
		if err != nil {
			return 0, nil, err
		}
		ops, err := resolveChildren(childIDs, nodes)
		if err != nil {
			return 0, nil, err
		}
		if len(ops) != 1 {
			return 0, nil, errors.Errorf("extractvalue wants 1 operand, got %d", len(ops))
		}
		return id, c.GetExtractValue(w, ops[0], idx), nil
	default:
		w, childIDs, err := parseDefaultRest(rest)
		if err != nil {
			return 0, nil, err
		}
		ops, err := resolveChildren(childIDs, nodes)
		if err != nil {
			return 0, nil, err
		}
		return id, c.GetInst(kind, w, ops), nil
	}
}

func resolveChildren(ids []int, nodes map[int]*ir.Inst) ([]*ir.Inst, error) {
	ops := make([]*ir.Inst, len(ids))
	for i, cid := range ids {
		n, ok := nodes[cid]
		if !ok {
			return nil, errors.Errorf("operand #%d referenced before definition", cid)
		}
		ops[i] = n
	}
	return ops, nil
}

func splitHeadAndChildren(rest string) (string, []int, error) {
	open := strings.Index(rest, "(")
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return "", nil, errors.Errorf("malformed operand list in %q", rest)
	}
	head := rest[:open]
	inner := rest[open+1 : len(rest)-1]
	var ids []int
	if inner != "" {
		for _, tok := range strings.Split(inner, ",") {
			tok = strings.TrimPrefix(tok, "#")
			id, err := strconv.Atoi(tok)
			if err != nil {
				return "", nil, err
			}
			ids = append(ids, id)
		}
	}
	return head, ids, nil
}

func parseDefaultRest(rest string) (int, []int, error) {
	head, ids, err := splitHeadAndChildren(rest)
	if err != nil {
		return 0, nil, err
	}
	w, err := strconv.Atoi(head)
	if err != nil {
		return 0, nil, err
	}
	return w, ids, nil
}

func parseExtractRest(rest string) (int, int, []int, error) {
	head, ids, err := splitHeadAndChildren(rest)
	if err != nil {
		return 0, 0, nil, err
	}
	fields := strings.SplitN(head, ":", 2)
	if len(fields) != 2 {
		return 0, 0, nil, fmt.Errorf("malformed extractvalue head %q", head)
	}
	w, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, nil, err
	}
	idx, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, nil, err
	}
	return w, idx, ids, nil
}

func parsePhiRest(rest string) (int, string, int, []int, error) {
	head, ids, err := splitHeadAndChildren(rest)
	if err != nil {
		return 0, "", 0, nil, err
	}
	fields := strings.SplitN(head, ":", 3)
	if len(fields) != 3 {
		return 0, "", 0, nil, fmt.Errorf("malformed phi head %q", head)
	}
	w, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", 0, nil, err
	}
	preds, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, "", 0, nil, err
	}
	return w, fields[1], preds, ids, nil
}
