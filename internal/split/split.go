// Package split partitions the validated corpus into train/val/test sets,
// preserving per-class proportions and producing the same assignment for the
// same corpus, ratios and seed on every run.
package split

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/plastivision/datakit/internal/corpus"
)

// Name identifies one of the three dataset partitions.
type Name string

const (
	Train Name = "train"
	Val   Name = "val"
	Test  Name = "test"
)

// Names lists the partitions in canonical order.
var Names = []Name{Train, Val, Test}

// IntegrityError reports a corpus that cannot support training: the whole
// corpus, or an entire split with a non-zero ratio, ended up empty. It is
// fatal; downstream training cannot proceed.
type IntegrityError struct {
	Detail string
}

func (e *IntegrityError) Error() string {
	return "dataset integrity: " + e.Detail
}

// Partitions holds the disjoint split assignment. Every valid corpus record
// appears in exactly one partition.
type Partitions struct {
	Train []corpus.ImageRecord
	Val   []corpus.ImageRecord
	Test  []corpus.ImageRecord
}

// ForSplit returns the records assigned to the named split.
func (p *Partitions) ForSplit(name Name) []corpus.ImageRecord {
	switch name {
	case Train:
		return p.Train
	case Val:
		return p.Val
	case Test:
		return p.Test
	}
	return nil
}

// Total returns the number of records across all partitions.
func (p *Partitions) Total() int {
	return len(p.Train) + len(p.Val) + len(p.Test)
}

// Partition assigns every corpus record to exactly one split.
//
// Per class, records are sorted by base filename to erase input-order
// nondeterminism, then shuffled with the seeded source and cut
// proportionally: val and test take floor(n*ratio) records each and train
// takes the remainder. Classes too small to populate all three splits are
// warned about, not rejected. The assignment is a pure function of the
// corpus content, the ratios and the seed, and must be computed before any
// parallel fan-out.
func Partition(c *corpus.Corpus, ratios [3]float64, seed int64, logger *zap.Logger) (*Partitions, error) {
	if c.Total == 0 {
		return nil, &IntegrityError{Detail: "corpus is empty after validation"}
	}

	classes := make([]string, 0, len(c.ByClass))
	for class := range c.ByClass {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	rng := rand.New(rand.NewSource(seed))
	p := &Partitions{}
	for _, class := range classes {
		records := append([]corpus.ImageRecord(nil), c.ByClass[class]...)
		sort.Slice(records, func(i, j int) bool {
			return filepath.Base(records[i].Path) < filepath.Base(records[j].Path)
		})
		rng.Shuffle(len(records), func(i, j int) {
			records[i], records[j] = records[j], records[i]
		})

		n := len(records)
		nVal := int(float64(n) * ratios[1])
		nTest := int(float64(n) * ratios[2])
		nTrain := n - nVal - nTest

		if nTrain == 0 || (ratios[1] > 0 && nVal == 0) || (ratios[2] > 0 && nTest == 0) {
			logger.Warn("class too small to populate every split",
				zap.String("class", class),
				zap.Int("images", n),
				zap.Int("train", nTrain), zap.Int("val", nVal), zap.Int("test", nTest))
		}

		p.Train = append(p.Train, records[:nTrain]...)
		p.Val = append(p.Val, records[nTrain:nTrain+nVal]...)
		p.Test = append(p.Test, records[nTrain+nVal:]...)
	}

	for i, name := range Names {
		if ratios[i] > 0 && len(p.ForSplit(name)) == 0 {
			return nil, &IntegrityError{
				Detail: fmt.Sprintf("split %q is empty with ratio %v", name, ratios[i]),
			}
		}
	}

	logger.Info("partitioned corpus",
		zap.Int("train", len(p.Train)),
		zap.Int("val", len(p.Val)),
		zap.Int("test", len(p.Test)),
		zap.Int64("seed", seed))
	return p, nil
}
