package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qiime2/q2-recipe/internal/metadata"
	"github.com/qiime2/q2-recipe/internal/recipe"
	"github.com/qiime2/q2-recipe/internal/render"
	"github.com/qiime2/q2-recipe/internal/variant"
)

// loaded is a recipe taken through the full render pipeline.
type loaded struct {
	Recipe    *recipe.Recipe
	Rendered  []byte
	RecipeDir string
	Vars      map[string]string
}

// loadRendered reads the recipe file, assembles the variable table from
// the variant config, --set overrides and the project metadata, renders
// the document and parses it.
func loadRendered() (*loaded, error) {
	raw, err := os.ReadFile(recipePath)
	if err != nil {
		return nil, fmt.Errorf("reading recipe: %w", err)
	}
	recipeDir, err := filepath.Abs(filepath.Dir(recipePath))
	if err != nil {
		return nil, err
	}

	vars := variant.New()
	if variantPath != "" {
		vars, err = variant.Load(variantPath)
		if err != nil {
			return nil, err
		}
	}
	for _, kv := range setVars {
		if err := vars.Set(kv); err != nil {
			return nil, err
		}
	}

	log.Debug().Strs("variables", vars.Names()).Msg("variant variables loaded")

	table := vars.Values()
	if err := addBuiltins(table, raw, recipeDir); err != nil {
		return nil, err
	}

	rendered, err := render.New(table).Render(raw)
	if err != nil {
		return nil, err
	}

	rec, err := recipe.Parse(bytes.NewReader(rendered))
	if err != nil {
		return nil, err
	}

	return &loaded{
		Recipe:    rec,
		Rendered:  rendered,
		RecipeDir: recipeDir,
		Vars:      table,
	}, nil
}

// addBuiltins fills in the name and version variables when the variant
// table does not supply them. The version comes from the project
// metadata next to the recipe's source path, matching how the recipe's
// version placeholder is resolved at build time.
func addBuiltins(table map[string]string, raw []byte, recipeDir string) error {
	needed := make(map[string]bool)
	for _, name := range render.Placeholders(raw) {
		if _, ok := table[name]; !ok {
			needed[name] = true
		}
	}
	if !needed["name"] && !needed["version"] {
		return nil
	}

	lenient, err := recipe.ParseLenient(render.StripDirectives(raw))
	if err != nil {
		return fmt.Errorf("pre-parsing recipe: %w", err)
	}

	if needed["name"] && !strings.Contains(lenient.Package.Name, "{{") {
		table["name"] = lenient.Package.Name
	}

	if needed["version"] {
		if lenient.Source.Path == "" {
			return fmt.Errorf("version placeholder needs a source path to resolve project metadata; set it with --set version=...")
		}
		srcDir := lenient.Source.Path
		if !filepath.IsAbs(srcDir) {
			srcDir = filepath.Join(recipeDir, srcDir)
		}
		version, err := metadata.LoadVersion(srcDir)
		if err != nil {
			return err
		}
		log.Debug().Str("version", version).Str("dir", srcDir).Msg("resolved project version")
		table["version"] = version
	}
	return nil
}
