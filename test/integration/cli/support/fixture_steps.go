package support

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"

	"github.com/MeKo-Tech/panicle/internal/junction"
	"github.com/MeKo-Tech/panicle/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
	"gopkg.in/yaml.v3"
)

func (testCtx *TestContext) writeFile(name string, data []byte) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o600)
}

func (testCtx *TestContext) writeRecord(name string, rec *junction.Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return testCtx.writeFile(name, data)
}

// aPanicleRecord writes the synthetic 128x128 panicle as <stem>.yaml with
// its segmentation mask <stem>.png next to it.
func (testCtx *TestContext) aPanicleRecord(stem string) error {
	if err := testCtx.writeRecord(stem+".yaml", testutil.PanicleRecord()); err != nil {
		return err
	}
	return imaging.Save(testutil.PanicleMask(testutil.PanicleSize/2), testCtx.Path(stem+".png"))
}

// aJunctionRecordWithJunctions writes a record from a level | x | y table.
func (testCtx *TestContext) aJunctionRecordWithJunctions(name string, width, height int, table *godog.Table) error {
	rec := &junction.Record{Image: junction.ImageSize{Width: width, Height: height}}
	for i, row := range table.Rows {
		if len(row.Cells) != 3 {
			return fmt.Errorf("row %d: expected level, x and y", i+1)
		}
		if i == 0 && row.Cells[0].Value == "level" {
			continue
		}
		x, err := strconv.ParseFloat(row.Cells[1].Value, 64)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		y, err := strconv.ParseFloat(row.Cells[2].Value, 64)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		rec.Junctions = append(rec.Junctions, junction.PointRecord{Level: row.Cells[0].Value, X: x, Y: y})
	}
	return testCtx.writeRecord(name, rec)
}

// aFileWith writes the doc string verbatim.
func (testCtx *TestContext) aFileWith(name string, body *godog.DocString) error {
	return testCtx.writeFile(name, []byte(body.Content+"\n"))
}

// anEmptyFile creates a file without content.
func (testCtx *TestContext) anEmptyFile(name string) error {
	return testCtx.writeFile(name, nil)
}

// aWhiteImage writes a blank image of the given size.
func (testCtx *TestContext) aWhiteImage(name string, width, height int) error {
	path := testCtx.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return imaging.Save(testutil.CreateTestImage(width, height, color.White), path)
}

// theImageShouldBe checks the pixel size of a written image.
func (testCtx *TestContext) theImageShouldBe(name string, width, height int) error {
	img, err := imaging.Open(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", name, err)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("image %s is %dx%d, expected %dx%d", name, b.Dx(), b.Dy(), width, height)
	}
	return nil
}

// RegisterFixtureSteps registers the steps that prepare input files.
func (testCtx *TestContext) RegisterFixtureSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a panicle record "([^"]*)"$`, testCtx.aPanicleRecord)
	sc.Step(`^a junction record "([^"]*)" of (\d+)x(\d+) with junctions:$`, testCtx.aJunctionRecordWithJunctions)
	sc.Step(`^a file "([^"]*)" with:$`, testCtx.aFileWith)
	sc.Step(`^an empty file "([^"]*)"$`, testCtx.anEmptyFile)
	sc.Step(`^a white image "([^"]*)" of (\d+)x(\d+)$`, testCtx.aWhiteImage)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+)$`, testCtx.theImageShouldBe)
}
