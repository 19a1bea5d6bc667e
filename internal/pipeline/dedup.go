package pipeline

import (
	"github.com/goto-eat-map/csv2geojson/internal/model"
)

// Duplicate is an input row sharing its (shop_name, address) identity with
// at least one other row. Every member of a group is reported; Kept marks
// the one that went on to be processed.
type Duplicate struct {
	Seq    int             `json:"seq"`
	Kept   bool            `json:"kept"`
	Record model.RawRecord `json:"record"`
}

type seqRecord struct {
	seq int
	raw model.RawRecord
}

// dedup drops repeated identities, keeping the last occurrence. Survivors
// keep their relative input order.
func dedup(records []model.RawRecord) ([]seqRecord, []Duplicate) {
	last := make(map[model.RecordKey]int, len(records))
	count := make(map[model.RecordKey]int, len(records))
	for i, r := range records {
		k := r.Key()
		last[k] = i
		count[k]++
	}

	survivors := make([]seqRecord, 0, len(last))
	var duplicated []Duplicate
	for i, r := range records {
		k := r.Key()
		kept := last[k] == i
		if count[k] > 1 {
			duplicated = append(duplicated, Duplicate{Seq: i, Kept: kept, Record: r})
		}
		if kept {
			survivors = append(survivors, seqRecord{seq: i, raw: r})
		}
	}
	return survivors, duplicated
}
