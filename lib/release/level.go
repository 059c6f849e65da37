// Copyright 2026 The Slipway Authors
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"github.com/Masterminds/semver/v3"

	"github.com/slipway-project/slipway/lib/commits"
)

// Level is the magnitude of the next release, derived from commit
// history and never stored. The ordering matters: a higher level
// anywhere in the range dominates everything below it.
type Level int

const (
	// LevelNone means no releasable change exists since the last tag.
	// Callers treat this as "do not release" and halt gracefully.
	LevelNone Level = iota

	// LevelPatch bumps the patch field only.
	LevelPatch

	// LevelMinor bumps minor and zeroes patch.
	LevelMinor

	// LevelMajor bumps major and zeroes minor and patch.
	LevelMajor
)

// String returns the lowercase level name used in logs.
func (l Level) String() string {
	switch l {
	case LevelPatch:
		return "patch"
	case LevelMinor:
		return "minor"
	case LevelMajor:
		return "major"
	default:
		return "none"
	}
}

// ResolveLevel scans classified commits and returns the highest level
// present: Major > Minor > Patch > None. A single breaking commit
// anywhere in the range forces Major regardless of what accompanies
// it. Pure — same records, same level.
func ResolveLevel(records []commits.Record) Level {
	level := LevelNone
	for _, record := range records {
		switch record.Kind {
		case commits.KindBreaking:
			return LevelMajor
		case commits.KindFeature:
			if level < LevelMinor {
				level = LevelMinor
			}
		case commits.KindFix:
			if level < LevelPatch {
				level = LevelPatch
			}
		}
	}
	return level
}

// NextVersion computes the version a release at the given level
// produces: the indicated field increments and all lower-order fields
// reset to zero. Prerelease and build metadata are dropped — released
// versions are always plain triples. Panics on LevelNone; callers
// must halt on LevelNone before computing a next version.
func NextVersion(current *semver.Version, level Level) *semver.Version {
	var next semver.Version
	switch level {
	case LevelPatch:
		next = current.IncPatch()
	case LevelMinor:
		next = current.IncMinor()
	case LevelMajor:
		next = current.IncMajor()
	default:
		panic("release: NextVersion called with LevelNone")
	}
	return &next
}
