// Command genmock writes deterministic sample inspection exports in the two
// layouts the pipeline ingests: a Nazar tyre inspection CSV and a TCCU route
// control CSV (semicolon separated, decimal comma). The same seed always
// produces byte-identical files, so the output can be committed as fixtures.
//
// Usage:
//
//	go run ./cmd/genmock -out data/input -vehicles 12 -days 5 -seed 7
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gasparespejo/EFILabs/internal/recommend"
)

var baseDate = time.Date(2024, time.March, 18, 7, 0, 0, 0, time.UTC)

var (
	nazarHeader = []string{"PPU", "Flota", "Tipo de Eje", "pos", "Fecha Inspección", "Valor Presión", "Presión Correcta"}
	tccuHeader  = []string{"Vehículo", "Trayecto", "operacion", "PRESION CONTROLADA NEU", "PRESION OPTIMA NEU"}
)

var (
	fleets = []string{"Minería Norte", "Forestal Sur", "Retail Centro"}
	routes = []string{"Santiago-Valparaíso", "Antofagasta-Calama", "Concepción-Los Ángeles", "Santiago-Rancagua"}
)

// axleLayout is the tyre position layout of a 6x4 tractor: one steer axle
// and a dual-wheel drive tandem.
var axleLayout = []recommend.AxleClass{
	recommend.AxleSteer, recommend.AxleSteer,
	recommend.AxleDrive, recommend.AxleDrive, recommend.AxleDrive, recommend.AxleDrive,
	recommend.AxleDrive, recommend.AxleDrive, recommend.AxleDrive, recommend.AxleDrive,
}

type vehicle struct {
	plate string
	fleet string
	route string
	// bias shifts every reading of the vehicle, so some trucks run
	// systematically soft or hard.
	bias float64
}

type options struct {
	out      string
	vehicles int
	days     int
	seed     uint64
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("genmock", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.out, "out", "data/input", "output directory")
	fs.IntVar(&opts.vehicles, "vehicles", 12, "number of vehicles")
	fs.IntVar(&opts.days, "days", 5, "inspection days")
	fs.Uint64Var(&opts.seed, "seed", 7, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.vehicles <= 0 || opts.days <= 0 {
		return fmt.Errorf("-vehicles and -days must be positive")
	}

	if err := os.MkdirAll(opts.out, 0o750); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	fleet := newFleet(rng, opts.vehicles)

	nazar := nazarRows(rng, fleet, opts.days)
	if err := writeCSV(filepath.Join(opts.out, "nazar_inspecciones.csv"), ',', nazarHeader, nazar); err != nil {
		return err
	}
	log.Printf("nazar: %d rows", len(nazar))

	tccu := tccuRows(rng, fleet, opts.days)
	if err := writeCSV(filepath.Join(opts.out, "tccu_control.csv"), ';', tccuHeader, tccu); err != nil {
		return err
	}
	log.Printf("tccu: %d rows", len(tccu))
	return nil
}

func newFleet(rng *rand.Rand, n int) []vehicle {
	seen := make(map[string]bool, n)
	out := make([]vehicle, 0, n)
	for len(out) < n {
		p := plate(rng)
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, vehicle{
			plate: p,
			fleet: fleets[rng.IntN(len(fleets))],
			route: routes[rng.IntN(len(routes))],
			bias:  rng.NormFloat64() * 4,
		})
	}
	return out
}

// plate returns a Chilean-style plate: four consonants and two digits.
func plate(rng *rand.Rand) string {
	const letters = "BCDFGHJKLPRSTVWXYZ"
	var b strings.Builder
	for range 4 {
		b.WriteByte(letters[rng.IntN(len(letters))])
	}
	fmt.Fprintf(&b, "%02d", rng.IntN(100))
	return b.String()
}

func nazarRows(rng *rand.Rand, fleet []vehicle, days int) [][]string {
	var rows [][]string
	for d := range days {
		for i, v := range fleet {
			at := baseDate.AddDate(0, 0, d).Add(time.Duration(i*17) * time.Minute)
			for pos, class := range axleLayout {
				optimal, _ := recommend.ReferencePressure(class)
				measured := ""
				// A few gauges fail to record a value.
				if rng.Float64() >= 0.03 {
					measured = strconv.FormatFloat(reading(rng, optimal, v.bias), 'f', 1, 64)
				}
				plateCell := v.plate
				if rng.Float64() < 0.1 {
					plateCell = strings.ToLower(plateCell)
				}
				rows = append(rows, []string{
					plateCell,
					v.fleet,
					string(class),
					strconv.Itoa(pos + 1),
					at.Format("02/01/2006 15:04"),
					measured,
					strconv.FormatFloat(optimal, 'f', 0, 64),
				})
			}
		}
	}
	return rows
}

func tccuRows(rng *rand.Rand, fleet []vehicle, days int) [][]string {
	var rows [][]string
	for range days {
		for _, v := range fleet {
			// Route control checks a sample of positions on each trip.
			for range 1 + rng.IntN(3) {
				class := axleLayout[rng.IntN(len(axleLayout))]
				optimal, _ := recommend.ReferencePressure(class)
				rows = append(rows, []string{
					" " + v.plate,
					v.route,
					v.fleet,
					decimalComma(reading(rng, optimal, v.bias)),
					decimalComma(optimal),
				})
			}
		}
	}
	return rows
}

// reading draws a gauge value around optimal, rounded to half a psi.
func reading(rng *rand.Rand, optimal, bias float64) float64 {
	v := optimal + bias + rng.NormFloat64()*5
	return math.Round(v*2) / 2
}

func decimalComma(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
}

func writeCSV(path string, comma rune, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Comma = comma
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
