package services

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/interfaces"
	"github.com/caio-sobreiro/dimsenet/types"
)

// Query/retrieve levels.
const (
	LevelPatient = string(types.QueryLevelPatient)
	LevelStudy   = string(types.QueryLevelStudy)
	LevelSeries  = string(types.QueryLevelSeries)
	LevelImage   = string(types.QueryLevelImage)
)

// levelKeys maps each level to its unique key.
var levelKeys = map[types.QueryLevel]dicom.Tag{
	types.QueryLevelPatient: dicom.PatientID,
	types.QueryLevelStudy:   dicom.StudyInstanceUID,
	types.QueryLevelSeries:  dicom.SeriesInstanceUID,
	types.QueryLevelImage:   dicom.SOPInstanceUID,
}


var _ interfaces.InstanceStore = (*Archive)(nil)

// Archive is an in-memory instance store shared by the storage and
// query/retrieve services. It is safe for concurrent use.
type Archive struct {
	mu        sync.RWMutex
	instances map[string]*interfaces.Instance
	order     []string
}

// NewArchive creates an empty archive.
func NewArchive() *Archive {
	return &Archive{instances: make(map[string]*interfaces.Instance)}
}

// Put stores ds under its SOP Instance UID, replacing an earlier copy.
func (a *Archive) Put(ds *dicom.Dataset) (*interfaces.Instance, error) {
	if ds == nil {
		return nil, fmt.Errorf("archive: nil data set")
	}
	inst := &interfaces.Instance{
		SOPClassUID:    ds.GetString(dicom.SOPClassUID),
		SOPInstanceUID: ds.GetString(dicom.SOPInstanceUID),
		Dataset:        ds,
	}
	if inst.SOPClassUID == "" || inst.SOPInstanceUID == "" {
		return nil, fmt.Errorf("archive: data set has no SOP class or instance UID")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.instances[inst.SOPInstanceUID]; !ok {
		a.order = append(a.order, inst.SOPInstanceUID)
	}
	a.instances[inst.SOPInstanceUID] = inst
	return inst, nil
}

// Get returns the instance with the given SOP Instance UID.
func (a *Archive) Get(sopInstanceUID string) (*interfaces.Instance, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	inst, ok := a.instances[sopInstanceUID]
	return inst, ok
}

// Len returns the number of stored instances.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.instances)
}

// Instances returns every instance in insertion order.
func (a *Archive) Instances() []*interfaces.Instance {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*interfaces.Instance, 0, len(a.order))
	for _, uid := range a.order {
		out = append(out, a.instances[uid])
	}
	return out
}

// LoadDir adds every readable DICOM file under dir. Files that do not parse
// are skipped.
func (a *Archive) LoadDir(dir string) (int, error) {
	loaded := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		f, err := dicom.ReadFile(path)
		if err != nil {
			return nil
		}
		if _, err := a.Put(f.Dataset); err == nil {
			loaded++
		}
		return nil
	})
	return loaded, err
}

// Select returns the instances matching every non-empty key in keys.
func (a *Archive) Select(keys *dicom.Dataset) []*interfaces.Instance {
	var out []*interfaces.Instance
	for _, inst := range a.Instances() {
		if matches(inst.Dataset, keys) {
			out = append(out, inst)
		}
	}
	return out
}

// Find answers a C-FIND identifier: one response per distinct entity at the
// requested level, holding the requested keys filled from the archive.
func (a *Archive) Find(keys *dicom.Dataset) ([]*dicom.Dataset, error) {
	raw := keys.GetString(dicom.QueryRetrieveLevel)
	level, ok := types.ParseQueryLevel(raw)
	if !ok {
		return nil, fmt.Errorf("archive: unsupported query/retrieve level %q", raw)
	}
	unique := levelKeys[level]

	seen := make(map[string]bool)
	var out []*dicom.Dataset
	for _, inst := range a.Select(keys) {
		id := inst.Dataset.GetString(unique)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, identifier(inst.Dataset, keys, unique))
	}
	return out, nil
}

// identifier copies the keys requested in keys from ds.
func identifier(ds, keys *dicom.Dataset, unique dicom.Tag) *dicom.Dataset {
	id := dicom.NewDataset()
	for _, el := range keys.Elements() {
		if el.Tag == dicom.QueryRetrieveLevel {
			id.AddElement(el.Tag, el.VR, el.Value)
			continue
		}
		if found, ok := ds.Search(el.Tag); ok {
			id.AddElement(found.Tag, found.VR, found.Value)
		} else if el.VR == dicom.VR_SQ {
			id.AddElement(el.Tag, el.VR, []*dicom.Dataset(nil))
		} else {
			id.AddElement(el.Tag, el.VR, "")
		}
	}
	if _, ok := id.Search(unique); !ok {
		id.AddElement(unique, "", ds.GetString(unique))
	}
	return id
}

func matches(ds, keys *dicom.Dataset) bool {
	for _, el := range keys.Elements() {
		if el.Tag == dicom.QueryRetrieveLevel || el.Tag == dicom.SpecificCharacterSet || el.VR == dicom.VR_SQ {
			continue
		}
		want := keys.GetString(el.Tag)
		if want == "" || want == "*" {
			continue
		}
		if !matchValue(el.VR, want, ds.GetString(el.Tag)) {
			return false
		}
	}
	return true
}

// matchValue applies the attribute matching rules: UID lists, date ranges
// and wildcards. Text comparison ignores case.
func matchValue(vr, want, have string) bool {
	switch {
	case vr == dicom.VR_UI:
		for _, uid := range strings.Split(want, "\\") {
			if uid == have {
				return true
			}
		}
		return false
	case (vr == dicom.VR_DA || vr == dicom.VR_TM || vr == dicom.VR_DT) && strings.Contains(want, "-"):
		lo, hi, _ := strings.Cut(want, "-")
		return have != "" && (lo == "" || have >= lo) && (hi == "" || have <= hi)
	}
	return wildcard(strings.ToUpper(want), strings.ToUpper(have))
}

// wildcard matches s against a pattern where '*' is any run and '?' any
// single character.
func wildcard(pattern, s string) bool {
	p, v := []rune(pattern), []rune(s)
	star, mark := -1, 0
	i, j := 0, 0
	for j < len(v) {
		switch {
		case i < len(p) && (p[i] == '?' || p[i] == v[j]):
			i++
			j++
		case i < len(p) && p[i] == '*':
			star, mark = i, j
			i++
		case star >= 0:
			i = star + 1
			mark++
			j = mark
		default:
			return false
		}
	}
	for i < len(p) && p[i] == '*' {
		i++
	}
	return i == len(p)
}
