// colltool is a CLI utility for inspecting tile collision data.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/tilecollide/internal/assets"
	"github.com/Faultbox/tilecollide/internal/config"
	"github.com/Faultbox/tilecollide/internal/world"
	"github.com/Faultbox/tilecollide/pkg/collision"
	"github.com/Faultbox/tilecollide/pkg/formats"
	"github.com/Faultbox/tilecollide/pkg/grf"
	"github.com/Faultbox/tilecollide/pkg/math"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "build", "shapes":
		cmdBuild(args)
	case "query", "q":
		cmdQuery(args)
	case "gat":
		cmdGAT(args)
	case "list", "ls":
		cmdList(args)
	case "pack":
		cmdPack(args)
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`colltool - tile collision utility

Usage:
  colltool <command> [options]

Commands:
  info <map>                             Show map, catalog and index statistics
  build <map>                            List the merged collision shapes
  query point <map> <x> <y>              Test a point
  query rect <map> <x> <y> <w> <h>       List shapes overlapping a rectangle
  query sweep <map> <x> <y> <w> <h> <dx> <dy>
                                         Sweep a rectangle along a displacement
  gat <file.gat>                         Show GAT grid information
  list <file.grf> [pattern]              List files in a GRF archive
  pack <out.grf> <dir>                   Pack map files under dir into a GRF archive
  config [path]                          Write the default config

Maps are TMX files with their tilesets next to them, or GAT grids.

Examples:
  colltool info maps/house.tmx
  colltool build -yaml maps/house.tmx
  colltool query point -mask wall maps/house.tmx 24 14
  colltool query sweep maps/house.tmx 0 0 16 16 0 20
  colltool gat -grid prontera.gat
  colltool pack maps.grf ./assets`)
}

// mapFlags registers the flags shared by commands that load a map.
func mapFlags(fs *flag.FlagSet) (*int, *string) {
	bucket := fs.Int("bucket", 0, "Index bucket edge in tiles (0 = automatic)")
	layers := fs.String("layers", "", "Comma-separated collision layer paths (default from config)")
	return bucket, layers
}

// loadWorld loads a map file through the asset manager rooted at its
// directory.
func loadWorld(path string, bucket int, layers string) *world.World {
	cfg := config.Default()
	cfg.Collision.BucketTiles = bucket
	if layers != "" {
		cfg.Assets.CollisionLayers = strings.Split(layers, ",")
	}

	a := assets.NewManager()
	defer a.Close()
	if err := a.AddRoot(filepath.Dir(path)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	m := world.NewManager(a, world.OptionsFromConfig(cfg))
	if err := m.Load(filepath.Base(path)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return m.Current()
}

func cmdInfo(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	bucket, layers := mapFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: colltool info <map>")
		os.Exit(1)
	}

	w := loadWorld(fs.Arg(0), *bucket, *layers)
	tw, th := w.TileSize()
	idx := w.Collision().Index()
	stats := idx.Stats()

	fmt.Printf("Map:       %s\n", fs.Arg(0))
	fmt.Printf("Size:      %dx%d tiles (%gx%g px)\n", w.Width, w.Height, w.Bounds().W, w.Bounds().H)
	fmt.Printf("Tile:      %gx%g\n", tw, th)
	fmt.Printf("Layers:    %s\n", strings.Join(w.Layers(), ", "))
	fmt.Printf("Instances: %d\n", w.Collision().Instances())
	fmt.Println()

	fmt.Println("Tilesets:")
	for _, ts := range w.Catalog().Tilesets() {
		fmt.Printf("  %-32s ids %d-%d  %d tiles with collision, %d shapes\n",
			ts.Name, ts.FirstID, ts.LastID, ts.Tiles, ts.Shapes)
	}
	fmt.Println()

	byTag := make(map[collision.Tag]int)
	for _, s := range idx.Shapes() {
		byTag[s.Tag]++
	}
	fmt.Println("Index:")
	fmt.Printf("  Shapes:   %d (wall %d, object %d)\n", stats.Shapes, byTag[collision.Wall], byTag[collision.Object])
	fmt.Printf("  Buckets:  %d of %gx%g px\n", stats.Buckets, stats.BucketWidth, stats.BucketHeight)
	fmt.Printf("  Per bucket: max %d, avg %.2f\n", stats.MaxPerBucket, stats.AvgPerBucket)

	if zones := w.Zones(); len(zones) > 0 {
		fmt.Println()
		fmt.Printf("Zones:     %s\n", strings.Join(zones, ", "))
	}
}

type shapeRecord struct {
	ID    collision.ShapeID `yaml:"id"`
	Tag   string            `yaml:"tag"`
	X     float64           `yaml:"x"`
	Y     float64           `yaml:"y"`
	W     float64           `yaml:"w"`
	H     float64           `yaml:"h"`
	Parts int               `yaml:"parts"`
}

func cmdBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	bucket, layers := mapFlags(fs)
	asYAML := fs.Bool("yaml", false, "Print shapes as YAML")
	tagFilter := fs.String("mask", "all", "Only list shapes with these tags (wall,object)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: colltool build <map>")
		os.Exit(1)
	}

	mask, err := collision.ParseMask(*tagFilter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := loadWorld(fs.Arg(0), *bucket, *layers)
	var records []shapeRecord
	for _, s := range w.Collision().Index().Shapes() {
		if !mask.Has(s.Tag) {
			continue
		}
		records = append(records, shapeRecord{
			ID:    s.ID,
			Tag:   s.Tag.String(),
			X:     s.Rect.X,
			Y:     s.Rect.Y,
			W:     s.Rect.W,
			H:     s.Rect.H,
			Parts: len(s.Parts),
		})
	}

	if *asYAML {
		out, err := yaml.Marshal(records)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding shapes: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	for _, r := range records {
		fmt.Printf("#%-5d %-6s x=%-8g y=%-8g w=%-8g h=%-8g parts=%d\n", r.ID, r.Tag, r.X, r.Y, r.W, r.H, r.Parts)
	}
	fmt.Fprintf(os.Stderr, "\n(%d shapes)\n", len(records))
}

func cmdQuery(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: colltool query <point|rect|sweep> [options] <map> <numbers...>")
		os.Exit(1)
	}

	kind := args[0]
	want := map[string]int{"point": 2, "rect": 4, "sweep": 6}[kind]
	if want == 0 {
		fmt.Fprintf(os.Stderr, "Unknown query: %s\n", kind)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("query "+kind, flag.ExitOnError)
	bucket, layers := mapFlags(fs)
	tagFilter := fs.String("mask", "all", "Tags to test against (wall,object)")
	fs.Parse(args[1:])

	if fs.NArg() != want+1 {
		fmt.Fprintf(os.Stderr, "Usage: colltool query %s <map> with %d numbers\n", kind, want)
		os.Exit(1)
	}

	mask, err := collision.ParseMask(*tagFilter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	nums, err := parseFloats(fs.Args()[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := loadWorld(fs.Arg(0), *bucket, *layers)

	switch kind {
	case "point":
		p := math.Vec2{X: nums[0], Y: nums[1]}
		fmt.Printf("point (%g,%g) mask=%s: blocked=%v\n", p.X, p.Y, mask, w.PointBlocked(p, mask))
		if zone, ok := w.ZoneAt(p); ok {
			fmt.Printf("zone: %s\n", zone)
		}

	case "rect":
		r := math.NewRect(nums[0], nums[1], nums[2], nums[3])
		res := w.Overlaps(r, mask)
		fmt.Printf("rect %v mask=%s: %d shapes\n", r, mask, len(res.Shapes))
		for _, s := range res.Shapes {
			fmt.Printf("  %s\n", s)
		}
		if !res.Empty() {
			fmt.Printf("mtv: (%g,%g)\n", res.MTV.X, res.MTV.Y)
		}

	case "sweep":
		r := math.NewRect(nums[0], nums[1], nums[2], nums[3])
		d := math.Vec2{X: nums[4], Y: nums[5]}
		res, hit := w.Sweep(r, d, mask)
		if !hit {
			fmt.Printf("sweep %v by (%g,%g): no collision\n", r, d.X, d.Y)
			return
		}
		contact := r.Translate(d.Scale(res.T))
		fmt.Printf("sweep %v by (%g,%g): t=%g normal=(%g,%g)\n", r, d.X, d.Y, res.T, res.Normal.X, res.Normal.Y)
		fmt.Printf("contact at (%g,%g)\n", contact.X, contact.Y)
		for _, s := range res.Shapes {
			fmt.Printf("  %s\n", s)
		}
	}
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", a)
		}
		out[i] = v
	}
	return out, nil
}

func cmdGAT(args []string) {
	fs := flag.NewFlagSet("gat", flag.ExitOnError)
	grid := fs.Bool("grid", false, "Print the grid (. walkable, # wall, o object, ~ water)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: colltool gat <file.gat>")
		os.Exit(1)
	}

	path := fs.Arg(0)
	gat, err := formats.LoadGAT(os.DirFS(filepath.Dir(path)), filepath.Base(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("GAT:     %s\n", path)
	fmt.Printf("Version: %s\n", gat.Version)
	fmt.Printf("Size:    %dx%d cells\n", gat.Width, gat.Height)
	fmt.Printf("Blocking instances: %d\n", len(gat.Instances()))
	fmt.Println()
	fmt.Println("Cells by type:")

	counts := gat.CountByType()
	types := make([]formats.GATCellType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		fmt.Printf("  %-16s %d\n", t, counts[t])
	}

	if !*grid {
		return
	}
	fmt.Println()
	var sb strings.Builder
	for y := 0; y < int(gat.Height); y++ {
		sb.Reset()
		for x := 0; x < int(gat.Width); x++ {
			sb.WriteByte(gatGlyph(gat.GetCell(x, y).Type))
		}
		fmt.Println(sb.String())
	}
}

func gatGlyph(t formats.GATCellType) byte {
	if tag, ok := t.CollisionTag(); ok {
		if tag == collision.Object {
			return 'o'
		}
		return '#'
	}
	if t.IsWater() {
		return '~'
	}
	return '.'
}

func cmdConfig(args []string) {
	path := filepath.Join(config.ConfigDir(), "collision.yaml")
	if len(args) > 0 {
		path = args[0]
	}
	if err := config.Default().SaveTo(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote: %s\n", path)
}

func cmdList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("n", 0, "Limit output to N files (0 = all)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: colltool list <file.grf> [pattern]")
		os.Exit(1)
	}

	archive, err := grf.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	pattern := ""
	if fs.NArg() > 1 {
		pattern = strings.ToLower(fs.Arg(1))
	}

	count := 0
	for _, f := range archive.List() {
		if pattern != "" {
			matched, _ := filepath.Match(pattern, filepath.Base(f))
			if !matched && !strings.Contains(f, pattern) {
				continue
			}
		}
		e, _ := archive.Entry(f)
		fmt.Printf("%10d  %s\n", e.UncompressedSize, f)
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}

	if pattern != "" {
		fmt.Fprintf(os.Stderr, "\n(%d files matched)\n", count)
	}
}

// packExtensions are the files pack collects.
var packExtensions = map[string]bool{".tmx": true, ".tsx": true, ".gat": true}

func cmdPack(args []string) {
	flags := flag.NewFlagSet("pack", flag.ExitOnError)
	flags.Parse(args)

	if flags.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: colltool pack <out.grf> <dir>")
		os.Exit(1)
	}
	out, root := flags.Arg(0), flags.Arg(1)

	var files []grf.File
	err := fs.WalkDir(os.DirFS(root), ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !packExtensions[strings.ToLower(filepath.Ext(name))] {
			return nil
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
		if err != nil {
			return err
		}
		files = append(files, grf.File{Name: name, Data: data})
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := grf.Write(f, files); err != nil {
		f.Close()
		fmt.Fprintf(os.Stderr, "Error writing archive: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, file := range files {
		fmt.Printf("Packed: %s (%d bytes)\n", file.Name, len(file.Data))
	}
	fmt.Fprintf(os.Stderr, "\nPacked %d files into %s\n", len(files), out)
}
