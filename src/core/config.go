package core

import (
	"os"

	"github.com/please-build/gcfg"
)

// YRootFileName marks the project root (§6.3).
const YRootFileName = "YRoot"

// YConfigFileName is the optional project-root config file (§6.3).
const YConfigFileName = "YConfig"

// DefaultBuildFileName is the default build-file name (overridable with
// --build-file-name).
const DefaultBuildFileName = "YBuild"

// DefaultTargetName is the default target name used when no seed is given.
const DefaultTargetName = "all"

// DefaultWorkspaceDir is the default builders-workspace-dir (§6.3).
const DefaultWorkspaceDir = "ybtwork"

// Configuration holds the defaults read from YConfig plus anything the
// CLI overrides, following the same layered pattern as please's
// .plzconfig (default struct values, then gcfg.ReadFileInto layers file
// contents on top).
type Configuration struct {
	Parse struct {
		BuildFileName      string
		DefaultTargetName  string
	}
	Build struct {
		BuildersWorkspaceDir string
	}
	Cache struct {
		Dir         string
		HTTPURL     string
		UploadOnly  bool
		DirCacheHighWaterMarkMB int
		DirCacheLowWaterMarkMB  int
	}
	Docker struct {
		// Host is the docker daemon / registry endpoint the Image Cache
		// Classifier queries; empty uses the local daemon socket.
		Host string
	}
}

// DefaultConfiguration returns a Configuration populated with the
// engine's built-in defaults, before any YConfig file is applied.
func DefaultConfiguration() *Configuration {
	c := &Configuration{}
	c.Parse.BuildFileName = DefaultBuildFileName
	c.Parse.DefaultTargetName = DefaultTargetName
	c.Build.BuildersWorkspaceDir = DefaultWorkspaceDir
	c.Cache.Dir = "" // not read: cmd/ybt always keeps the local cache under <workspace>/.cache
	c.Cache.DirCacheHighWaterMarkMB = 10 * 1024
	c.Cache.DirCacheLowWaterMarkMB = 8 * 1024
	return c
}

// ReadConfigFile reads a YConfig file (if present) into config, leaving
// defaults in place for anything the file doesn't set. It's not an error
// for the file to be absent.
func ReadConfigFile(config *Configuration, filename string) error {
	if err := gcfg.ReadFileInto(config, filename); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		if gcfg.FatalOnly(err) != nil {
			return err
		}
		log.Warning("non-fatal error in config file %s: %s", filename, err)
	}
	return nil
}
