package plan

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	digest "github.com/opencontainers/go-digest"
)

// DependencyChange is a dependency present in only one of two plans.
type DependencyChange struct {
	Name      string        `json:"name"`
	Reference string        `json:"reference"`
	Digest    digest.Digest `json:"digest"`
}

// DependencyUpdate is a dependency whose content changed between two plans.
type DependencyUpdate struct {
	Name         string        `json:"name"`
	OldReference string        `json:"old_reference"`
	NewReference string        `json:"new_reference"`
	OldDigest    digest.Digest `json:"old_digest"`
	NewDigest    digest.Digest `json:"new_digest"`
}

// SettingChange is a changed scalar setting, identified by its field path.
type SettingChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// Diff describes the differences between two build plans.
//
// Useful for reviewing what a config edit or a dependency bump does to the
// build before running it:
//
//	old, _ := plan.ReadFile("build/plan/release.json")
//	d := plan.Compare(old, fresh)
//	if !d.IsEmpty() {
//	    fmt.Printf("%d dependency changes\n", len(d.Added)+len(d.Removed)+len(d.Changed))
//	}
type Diff struct {
	// Added contains dependencies present in new but not in old.
	Added []DependencyChange `json:"added,omitempty"`

	// Removed contains dependencies present in old but not in new.
	Removed []DependencyChange `json:"removed,omitempty"`

	// Changed contains dependencies whose digest differs.
	Changed []DependencyUpdate `json:"changed,omitempty"`

	// Settings contains changed identity, SDK and variant settings.
	Settings []SettingChange `json:"settings,omitempty"`
}

// IsEmpty returns true if the plans are equivalent.
func (d *Diff) IsEmpty() bool {
	return d.TotalChanges() == 0
}

// TotalChanges returns the number of differences.
func (d *Diff) TotalChanges() int {
	return len(d.Added) + len(d.Removed) + len(d.Changed) + len(d.Settings)
}

// Compare computes the difference between two plans. A nil plan is treated
// as empty. Dependencies are matched by symbolic name; results are sorted by
// name, settings by field.
func Compare(old, new *BuildPlan) *Diff {
	diff := &Diff{}

	oldDeps := make(map[string]Dependency)
	newDeps := make(map[string]Dependency)
	if old != nil {
		for _, d := range old.Dependencies {
			oldDeps[d.Name] = d
		}
	}
	if new != nil {
		for _, d := range new.Dependencies {
			newDeps[d.Name] = d
		}
	}

	for name, nd := range newDeps {
		od, existed := oldDeps[name]
		switch {
		case !existed:
			diff.Added = append(diff.Added, DependencyChange{Name: name, Reference: nd.Reference, Digest: nd.Digest})
		case od.Digest != nd.Digest:
			diff.Changed = append(diff.Changed, DependencyUpdate{
				Name:         name,
				OldReference: od.Reference,
				NewReference: nd.Reference,
				OldDigest:    od.Digest,
				NewDigest:    nd.Digest,
			})
		}
	}
	for name, od := range oldDeps {
		if _, ok := newDeps[name]; !ok {
			diff.Removed = append(diff.Removed, DependencyChange{Name: name, Reference: od.Reference, Digest: od.Digest})
		}
	}

	diff.Settings = compareSettings(settings(old), settings(new))

	sort.Slice(diff.Added, func(i, j int) bool { return diff.Added[i].Name < diff.Added[j].Name })
	sort.Slice(diff.Removed, func(i, j int) bool { return diff.Removed[i].Name < diff.Removed[j].Name })
	sort.Slice(diff.Changed, func(i, j int) bool { return diff.Changed[i].Name < diff.Changed[j].Name })
	return diff
}

// settings flattens the scalar parts of a plan into field -> value.
func settings(p *BuildPlan) map[string]string {
	out := make(map[string]string)
	if p == nil {
		return out
	}
	out["application.namespace"] = p.Application.Namespace
	out["application.application_id"] = p.Application.ApplicationID
	out["application.version_code"] = fmt.Sprint(p.Application.VersionCode)
	out["application.version_name"] = p.Application.VersionName
	out["sdk.min"] = fmt.Sprint(p.SDK.Min)
	out["sdk.target"] = fmt.Sprint(p.SDK.Target)
	out["sdk.compile"] = fmt.Sprint(p.SDK.Compile)
	out["variant.name"] = p.Variant.Name
	out["variant.minify"] = fmt.Sprint(p.Variant.Minify)

	rules := make([]string, len(p.Variant.RuleFiles))
	for i, rf := range p.Variant.RuleFiles {
		rules[i] = rf.Ref
		if rf.Digest != "" {
			rules[i] += "@" + rf.Digest.String()
		}
	}
	out["variant.rule_files"] = strings.Join(rules, ",")

	if s := p.Variant.Signing; s != nil {
		out["variant.signing.profile"] = s.Profile
		out["variant.signing.store_file"] = s.StoreFile
		out["variant.signing.key_alias"] = s.KeyAlias
		out["variant.signing.store_secret"] = s.StoreSecret.Reference()
		out["variant.signing.key_secret"] = s.KeySecret.Reference()
	}
	for name, on := range p.Features {
		out["features."+name] = fmt.Sprint(on)
	}
	out["compile_options.source_compatibility"] = p.CompileOptions.SourceCompatibility
	out["compile_options.target_compatibility"] = p.CompileOptions.TargetCompatibility
	return out
}

func compareSettings(old, new map[string]string) []SettingChange {
	fields := make(map[string]bool)
	for k := range old {
		fields[k] = true
	}
	for k := range new {
		fields[k] = true
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out []SettingChange
	for _, k := range keys {
		if old[k] != new[k] {
			out = append(out, SettingChange{Field: k, Old: old[k], New: new[k]})
		}
	}
	return out
}
