package evaluation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const (
	detailIDSeparator = "|"
	keySeparator      = "||"
)

// Item is one extracted synthesis step.
type Item struct {
	CompoundID  string   `json:"compound_id"`
	IUPACName   string   `json:"iupac_name"`
	StructureID string   `json:"structure_id"`
	DetailIDs   []string `json:"detail_ids"`
	Detail      string   `json:"detail"`
	Refs        []string `json:"refs"`
}

// Results is the shape of a synthesis-route prediction.
type Results struct {
	Results []Item `json:"results"`
}

func normalizeDetailIDs(ids []string) []string {
	norm := lo.Uniq(ids)
	sort.Strings(norm)
	return norm
}

// CompositeKey aligns predicted items with ground-truth items. It is
// independent of detail id order and duplication.
func CompositeKey(detailIDs []string, compoundID, structureID string) string {
	return strings.Join(normalizeDetailIDs(detailIDs), detailIDSeparator) +
		keySeparator + compoundID + keySeparator + structureID
}

func (i *Item) Key() string {
	return CompositeKey(i.DetailIDs, i.CompoundID, i.StructureID)
}

// emptyItem is the placeholder paired with a missed or spurious item.
func emptyItem(key string) *Item {
	detailKey, _, _ := strings.Cut(key, keySeparator)
	return &Item{DetailIDs: strings.Split(detailKey, detailIDSeparator)}
}

var errMissingDetailIDs = errors.New("missing detail_ids")

func itemFromMap(obj map[string]any) (*Item, error) {
	rawIDs, _ := obj["detail_ids"].([]any)
	if len(rawIDs) == 0 {
		if ids, ok := obj["detail_ids"].([]string); ok && len(ids) > 0 {
			rawIDs = lo.ToAnySlice(ids)
		} else {
			return nil, errMissingDetailIDs
		}
	}
	detailIDs, err := stringList(rawIDs)
	if err != nil {
		return nil, fmt.Errorf("detail_ids: %w", err)
	}
	compoundID, err := requiredString(obj, "compound_id")
	if err != nil {
		return nil, err
	}
	iupacName, err := requiredString(obj, "iupac_name")
	if err != nil {
		return nil, err
	}
	detail, err := requiredString(obj, "detail")
	if err != nil {
		return nil, err
	}
	structureID, err := optionalString(obj, "structure_id")
	if err != nil {
		return nil, err
	}
	var refs []string
	switch v := obj["refs"].(type) {
	case nil:
	case []any:
		if refs, err = stringList(v); err != nil {
			return nil, fmt.Errorf("refs: %w", err)
		}
	case []string:
		refs = v
	default:
		return nil, fmt.Errorf("refs: unexpected type %T", v)
	}
	if len(refs) == 0 {
		refs = nil
	}
	return &Item{
		CompoundID:  compoundID,
		IUPACName:   iupacName,
		StructureID: structureID,
		DetailIDs:   normalizeDetailIDs(detailIDs),
		Detail:      detail,
		Refs:        refs,
	}, nil
}

// requiredString accepts an absent field as "" but rejects null and
// non-string values.
func requiredString(obj map[string]any, field string) (string, error) {
	v, ok := obj[field]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T", field, v)
	}
	return s, nil
}

// optionalString also accepts null as "".
func optionalString(obj map[string]any, field string) (string, error) {
	if obj[field] == nil {
		return "", nil
	}
	return requiredString(obj, field)
}

func stringList(values []any) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		out[i] = s
	}
	return out, nil
}

// ItemsFromOutput indexes the items under output["results"] by composite
// key. Items without detail ids or with malformed fields are skipped. When
// two items share a key the first one is kept.
func ItemsFromOutput(output map[string]any) map[string]*Item {
	items := map[string]*Item{}
	results, _ := output["results"].([]any)
	for _, raw := range results {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		item, err := itemFromMap(obj)
		if err != nil {
			if !errors.Is(err, errMissingDetailIDs) {
				log.Debugf("skipping malformed item: %s", err)
			}
			continue
		}
		key := item.Key()
		if _, dup := items[key]; dup {
			log.Warnf("duplicate composite key detected (kept first): %s", key)
			continue
		}
		items[key] = item
	}
	return items
}
