package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caio-sobreiro/dimsenet/dicom"
	"github.com/caio-sobreiro/dimsenet/types"
)

// parseKeys turns -k Keyword=value options into a data set. A key without
// "=" is a return key with an empty value.
func parseKeys(specs []string) (*dicom.Dataset, error) {
	ds := dicom.NewDataset()
	for _, spec := range specs {
		name, value, _ := strings.Cut(spec, "=")
		tag, err := dicom.ParseTag(name)
		if err != nil {
			return nil, err
		}
		vr := dicom.LookupVR(tag)
		switch vr {
		case dicom.VR_SQ:
			return nil, fmt.Errorf("key %s: sequence keys are not supported", name)
		case dicom.VR_US:
			n, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", name, err)
			}
			ds.AddElement(tag, vr, uint16(n))
		case dicom.VR_UN:
			ds.AddElement(tag, dicom.VR_LO, value)
		default:
			ds.AddElement(tag, vr, value)
		}
	}
	return ds, nil
}

// queryKeys builds an identifier at level with the usual return keys, then
// applies the -k overrides.
func queryKeys(level string, specs []string) (*dicom.Dataset, error) {
	overrides, err := parseKeys(specs)
	if err != nil {
		return nil, err
	}
	lvl, ok := types.ParseQueryLevel(level)
	if !ok {
		return nil, fmt.Errorf("unknown query level %q", level)
	}
	base := dicom.NewDataset()
	base.AddElement(dicom.QueryRetrieveLevel, dicom.VR_CS, string(lvl))
	switch lvl {
	case types.QueryLevelPatient:
		base.AddElement(dicom.PatientName, dicom.VR_PN, "")
		base.AddElement(dicom.PatientID, dicom.VR_LO, "")
	case types.QueryLevelStudy:
		base.AddElement(dicom.StudyDate, dicom.VR_DA, "")
		base.AddElement(dicom.PatientName, dicom.VR_PN, "")
		base.AddElement(dicom.PatientID, dicom.VR_LO, "")
		base.AddElement(dicom.StudyInstanceUID, dicom.VR_UI, "")
	case types.QueryLevelSeries:
		base.AddElement(dicom.Modality, dicom.VR_CS, "")
		base.AddElement(dicom.StudyInstanceUID, dicom.VR_UI, "")
		base.AddElement(dicom.SeriesInstanceUID, dicom.VR_UI, "")
	case types.QueryLevelImage:
		base.AddElement(dicom.SeriesInstanceUID, dicom.VR_UI, "")
		base.AddElement(dicom.SOPInstanceUID, dicom.VR_UI, "")
	}
	return dicom.Merge(base, overrides), nil
}

// informationModel names a query/retrieve model.
type informationModel struct {
	find, move, get string
}

var informationModels = map[string]informationModel{
	"study": {
		find: types.StudyRootQueryRetrieveInformationModelFind,
		move: types.StudyRootQueryRetrieveInformationModelMove,
		get:  types.StudyRootQueryRetrieveInformationModelGet,
	},
	"patient": {
		find: types.PatientRootQueryRetrieveInformationModelFind,
		move: types.PatientRootQueryRetrieveInformationModelMove,
		get:  types.PatientRootQueryRetrieveInformationModelGet,
	},
	"psonly": {
		find: types.PatientStudyOnlyQueryRetrieveInformationModelFind,
		move: types.PatientStudyOnlyQueryRetrieveInformationModelMove,
		get:  types.PatientStudyOnlyQueryRetrieveInformationModelGet,
	},
	"worklist": {
		find: types.ModalityWorklistInformationModelFind,
	},
}

func lookupModel(name string) (informationModel, error) {
	m, ok := informationModels[strings.ToLower(name)]
	if !ok {
		return informationModel{}, fmt.Errorf("unknown information model %q (study, patient, psonly, worklist)", name)
	}
	return m, nil
}

// expandPaths replaces directories by the regular files below them.
func expandPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			out = append(out, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
