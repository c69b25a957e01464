// Package scene models one satellite thermal observation and the quality
// filter that turns it into a validated LST raster.
package scene

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/urbanclimate/suhi-cli/internal/raster"
)

// SensorFamily identifies the thermal instrument that produced a scene.
// The family decides the QA clear-sky code and the destriping policy.
type SensorFamily string

const (
	// SensorOLITIRS covers Landsat 8/9 (the newer family).
	SensorOLITIRS SensorFamily = "oli_tirs"
	// SensorETM covers Landsat 7. Scenes after the scan-line corrector
	// failure carry nodata stripes that the filter repairs.
	SensorETM SensorFamily = "etm"
	// SensorTM covers Landsat 4/5.
	SensorTM SensorFamily = "tm"
)

// Thermal band suffixes per family; the newer instruments carry the
// surface-temperature product in band 10, the older ones in band 6.
const (
	thermalSuffixNew = "_ST_B10"
	thermalSuffixOld = "_ST_B6"
	qaSuffix         = "_QA_PIXEL"
)

// Observation is one satellite pass: identity plus the raw thermal
// digital-number raster and its QA raster. Immutable once loaded.
type Observation struct {
	ID         string
	Sensor     SensorFamily
	AcquiredAt time.Time
	Thermal    *raster.Grid
	QA         *raster.Grid
}

// Ref locates a scene on disk before its rasters are loaded.
type Ref struct {
	ID          string
	Sensor      SensorFamily
	AcquiredAt  time.Time
	ThermalPath string
	QAPath      string
}

// sensorFromPrefix maps a Landsat product-ID prefix to a sensor family.
func sensorFromPrefix(prefix string) (SensorFamily, bool) {
	switch prefix {
	case "LC08", "LC09":
		return SensorOLITIRS, true
	case "LE07":
		return SensorETM, true
	case "LT04", "LT05":
		return SensorTM, true
	}
	return "", false
}

// ParseID extracts the sensor family and acquisition date from a Landsat
// Collection 2 product ID such as LC08_L2SP_193029_20200718_20200816_02_T1.
func ParseID(id string) (SensorFamily, time.Time, error) {
	parts := strings.Split(id, "_")
	if len(parts) < 4 {
		return "", time.Time{}, eris.Errorf("scene: malformed product id %q", id)
	}
	sensor, ok := sensorFromPrefix(parts[0])
	if !ok {
		return "", time.Time{}, eris.Errorf("scene: unknown sensor prefix %q", parts[0])
	}
	acquired, err := time.Parse("20060102", parts[3])
	if err != nil {
		return "", time.Time{}, eris.Wrapf(err, "scene: acquisition date in %q", id)
	}
	return sensor, acquired, nil
}

// thermalSuffix returns the ST band suffix for a family.
func thermalSuffix(s SensorFamily) string {
	if s == SensorOLITIRS {
		return thermalSuffixNew
	}
	return thermalSuffixOld
}

// Discover scans a directory for scene file pairs (<id>_ST_B10.tif or
// <id>_ST_B6.tif alongside <id>_QA_PIXEL.tif) and returns one Ref per
// complete pair, sorted by acquisition date. Incomplete pairs are skipped.
func Discover(dir string) ([]Ref, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "scene: read dir %s", dir)
	}

	thermal := map[string]string{}
	qa := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".tif" && ext != ".tiff" {
			continue
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		switch {
		case strings.HasSuffix(base, qaSuffix):
			qa[strings.TrimSuffix(base, qaSuffix)] = filepath.Join(dir, name)
		case strings.HasSuffix(base, thermalSuffixNew):
			thermal[strings.TrimSuffix(base, thermalSuffixNew)] = filepath.Join(dir, name)
		case strings.HasSuffix(base, thermalSuffixOld):
			thermal[strings.TrimSuffix(base, thermalSuffixOld)] = filepath.Join(dir, name)
		}
	}

	var refs []Ref
	for id, thermalPath := range thermal {
		qaPath, ok := qa[id]
		if !ok {
			continue
		}
		sensor, acquired, err := ParseID(id)
		if err != nil {
			continue
		}
		refs = append(refs, Ref{
			ID:          id,
			Sensor:      sensor,
			AcquiredAt:  acquired,
			ThermalPath: thermalPath,
			QAPath:      qaPath,
		})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].AcquiredAt.Equal(refs[j].AcquiredAt) {
			return refs[i].ID < refs[j].ID
		}
		return refs[i].AcquiredAt.Before(refs[j].AcquiredAt)
	})
	return refs, nil
}

// Load reads the thermal and QA rasters for a Ref.
func Load(ref Ref) (*Observation, error) {
	thermal, err := raster.Read(ref.ThermalPath)
	if err != nil {
		return nil, eris.Wrapf(err, "scene: load thermal for %s", ref.ID)
	}
	qa, err := raster.Read(ref.QAPath)
	if err != nil {
		return nil, eris.Wrapf(err, "scene: load QA for %s", ref.ID)
	}
	return &Observation{
		ID:         ref.ID,
		Sensor:     ref.Sensor,
		AcquiredAt: ref.AcquiredAt,
		Thermal:    thermal,
		QA:         qa,
	}, nil
}
