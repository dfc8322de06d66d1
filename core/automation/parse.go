package automation

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/siherrmann/homegraph/helper"
	"github.com/siherrmann/homegraph/model"
	"gopkg.in/yaml.v3"
)

// TemplatePlatforms are the entity platforms a template block may define.
var TemplatePlatforms = []string{
	"sensor",
	"binary_sensor",
	"select",
	"number",
	"button",
	"switch",
	"image",
	"weather",
	"light",
	"fan",
	"cover",
	"lock",
	"vacuum",
	"alarm_control_panel",
}

// Slugify turns a name into an object id.
func Slugify(name string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func decode(data []byte) (model.Value, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return model.Null(), err
	}
	return model.ValueFromYAML(&node)
}

// ParseAutomations parses an automations file: a list of automation configs.
// Items without a usable identity are skipped with a warning.
func ParseAutomations(data []byte, source string, log *slog.Logger) ([]Definition, error) {
	root, err := decode(data)
	if err != nil {
		return nil, helper.NewError("decode automations", err)
	}
	if root.IsNull() {
		return nil, nil
	}
	if !root.IsList() {
		return nil, helper.NewError("decode automations", fmt.Errorf("expected a list, got %s", root.Kind()))
	}

	var definitions []Definition
	for i, item := range root.Items() {
		entityID := automationEntityID(item)
		if entityID == "" {
			log.Warn("Skipping automation without alias or id", slog.String("source", source), slog.Int("index", i))
			continue
		}
		definitions = append(definitions, Definition{
			EntityID: entityID,
			Domain:   "automation",
			UniqueID: scalarString(item, "id"),
			Source:   source,
			Config:   item,
		})
	}
	return definitions, nil
}

func automationEntityID(item model.Value) string {
	if explicit := item.GetString("entity_id"); strings.HasPrefix(explicit, "automation.") {
		return explicit
	}
	if slug := Slugify(item.GetString("alias")); slug != "" {
		return "automation." + slug
	}
	if slug := Slugify(item.GetString("id")); slug != "" {
		return "automation." + slug
	}
	return ""
}

// ParseScripts parses a scripts file: a mapping from script key to config.
func ParseScripts(data []byte, source string, log *slog.Logger) ([]Definition, error) {
	root, err := decode(data)
	if err != nil {
		return nil, helper.NewError("decode scripts", err)
	}
	if root.IsNull() {
		return nil, nil
	}
	if !root.IsMap() {
		return nil, helper.NewError("decode scripts", fmt.Errorf("expected a mapping, got %s", root.Kind()))
	}

	var definitions []Definition
	for _, key := range root.Keys() {
		config, _ := root.Get(key)
		if !config.IsMap() {
			log.Warn("Script config is not a mapping", slog.String("source", source), slog.String("script", key))
		}
		definitions = append(definitions, Definition{EntityID: "script." + key, Domain: "script", Source: source, Config: config})
	}
	return definitions, nil
}

// ParseScenes parses a scenes file: a list of scene configs.
func ParseScenes(data []byte, source string, log *slog.Logger) ([]Definition, error) {
	root, err := decode(data)
	if err != nil {
		return nil, helper.NewError("decode scenes", err)
	}
	if root.IsNull() {
		return nil, nil
	}
	if !root.IsList() {
		return nil, helper.NewError("decode scenes", fmt.Errorf("expected a list, got %s", root.Kind()))
	}

	var definitions []Definition
	for i, item := range root.Items() {
		slug := Slugify(item.GetString("name"))
		if slug == "" {
			slug = Slugify(item.GetString("id"))
		}
		if slug == "" {
			log.Warn("Skipping scene without name or id", slog.String("source", source), slog.Int("index", i))
			continue
		}
		definitions = append(definitions, Definition{
			EntityID: "scene." + slug,
			Domain:   "scene",
			UniqueID: scalarString(item, "id"),
			Source:   source,
			Config:   item,
		})
	}
	return definitions, nil
}

// ParseTemplates parses template entity blocks. Each block maps platforms
// to lists of entity configs; a block level trigger is copied into every
// entity of the block.
func ParseTemplates(data []byte, source string, log *slog.Logger) ([]Definition, error) {
	root, err := decode(data)
	if err != nil {
		return nil, helper.NewError("decode templates", err)
	}
	if root.IsNull() {
		return nil, nil
	}

	blocks := root.Items()
	if root.IsMap() {
		blocks = []model.Value{root}
	}

	var definitions []Definition
	for i, block := range blocks {
		if !block.IsMap() {
			log.Warn("Template block is not a mapping", slog.String("source", source), slog.Int("index", i))
			continue
		}
		blockUniqueID := scalarString(block, "unique_id")
		trigger, hasTrigger := block.Get("trigger")
		if !hasTrigger {
			trigger, hasTrigger = block.Get("triggers")
		}

		for _, platform := range TemplatePlatforms {
			entities, ok := block.Get(platform)
			if !ok {
				continue
			}
			items := entities.Items()
			if entities.IsMap() {
				items = []model.Value{entities}
			}
			for _, entity := range items {
				slug := Slugify(entity.GetString("name"))
				if slug == "" || strings.Contains(entity.GetString("name"), "{{") {
					slug = Slugify(entity.GetString("unique_id"))
				}
				if slug == "" {
					log.Warn("Skipping template entity without name or unique_id", slog.String("source", source), slog.String("platform", platform))
					continue
				}
				config := entity
				if hasTrigger && entity.IsMap() {
					config = withField(entity, "trigger", trigger)
				}
				uniqueID := scalarString(entity, "unique_id")
				if uniqueID != "" && blockUniqueID != "" {
					uniqueID = blockUniqueID + "_" + uniqueID
				}
				definitions = append(definitions, Definition{
					EntityID: platform + "." + slug,
					Domain:   platform,
					UniqueID: uniqueID,
					Source:   source,
					Config:   config,
				})
			}
		}
	}
	return definitions, nil
}

// scalarString reads a string or number field. Automation ids are often
// written as bare numbers.
func scalarString(v model.Value, key string) string {
	f, ok := v.Get(key)
	if !ok {
		return ""
	}
	if s, ok := f.Str(); ok {
		return s
	}
	if n, ok := f.Num(); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func withField(v model.Value, key string, value model.Value) model.Value {
	fields := make([]model.Field, 0, v.Len()+1)
	for _, k := range v.Keys() {
		item, _ := v.Get(k)
		fields = append(fields, model.Field{Key: k, Value: item})
	}
	fields = append(fields, model.Field{Key: key, Value: value})
	return model.Map(fields...)
}
