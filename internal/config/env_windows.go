//go:build windows

package config

// windowsEnv maps the Unix names used in shared configs, e.g. in
// credentialsFile: $(HOME)/drive.json, to their Windows equivalents.
var windowsEnv = map[string]string{
	"HOSTNAME": "COMPUTERNAME",
	"HOME":     "USERPROFILE",
	"USER":     "USERNAME",
	"TMPDIR":   "TEMP",
}

func mapEnvKey(key string) string {
	if k, ok := windowsEnv[key]; ok {
		return k
	}
	return key
}
