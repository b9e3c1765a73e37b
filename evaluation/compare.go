package evaluation

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

type ErrorType int

// Mismatch kinds, in the order the comparator checks them.
const (
	ErrorNone ErrorType = iota
	ErrorDetailIDs
	ErrorCompoundID
	ErrorStructureID
	ErrorRefs
	ErrorIUPACName
	ErrorDetail
	ErrorMissed
	ErrorSpurious
)

var errorTypeNames = map[ErrorType]string{
	ErrorNone:        "identical",
	ErrorDetailIDs:   "detail_ids mismatch",
	ErrorCompoundID:  "compound_id mismatch",
	ErrorStructureID: "structure_id mismatch",
	ErrorRefs:        "refs mismatch",
	ErrorIUPACName:   "iupac_name mismatch",
	ErrorDetail:      "detail mismatch",
	ErrorMissed:      "detail_ids missed (FN)",
	ErrorSpurious:    "detail_ids spurious (FP)",
}

func (e ErrorType) String() string {
	if name, ok := errorTypeNames[e]; ok {
		return name
	}
	return fmt.Sprintf("unknown type (%d)", int(e))
}

func (e ErrorType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

type Comparator struct {
	IUPACThreshold float64
}

// Compare classifies a ground-truth/prediction pair sharing a composite
// key. The first differing field decides the error type.
func (c Comparator) Compare(gt, pred *Item) ErrorType {
	switch {
	case !slices.Equal(gt.DetailIDs, pred.DetailIDs):
		return ErrorDetailIDs
	case gt.CompoundID != pred.CompoundID:
		return ErrorCompoundID
	case gt.StructureID != pred.StructureID:
		return ErrorStructureID
	case !slices.Equal(gt.Refs, pred.Refs):
		return ErrorRefs
	case !c.iupacMatch(gt.IUPACName, pred.IUPACName):
		return ErrorIUPACName
	case stripSpace(gt.Detail) != stripSpace(pred.Detail):
		return ErrorDetail
	}
	return ErrorNone
}

func (c Comparator) iupacMatch(a, b string) bool {
	if stripSpace(a) == stripSpace(b) {
		return true
	}
	return SimilarEnough(a, b, c.IUPACThreshold)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
