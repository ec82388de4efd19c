package conf

import (
	"github.com/tphakala/birdnet-api2ha/internal/birdnetconf"
)

// ResolveUpstream fills database and clip locations left empty in s from the
// BirdNET-Go configuration, when one can be found. Explicit settings always
// win. It returns the upstream info used, or nil when none was found.
func ResolveUpstream(s *Settings, searchDirs []string) (*birdnetconf.Info, error) {
	needDatabase := s.DatabasePath == "" && s.DatabaseType == DatabaseSQLite
	needClips := s.ClipsBasePath == ""
	if !needDatabase && !needClips && s.BirdNETConfigPath == "" {
		return nil, nil
	}

	info, err := birdnetconf.Discover(s.BirdNETConfigPath, s.DatabasePath, searchDirs)
	if err != nil || info == nil {
		return info, err
	}

	if needDatabase {
		switch info.DatabaseType {
		case birdnetconf.DatabaseSQLite:
			s.DatabasePath = info.SQLiteResolved
		case birdnetconf.DatabaseMySQL:
			s.DatabaseType = DatabaseMySQL
			s.MySQL = MySQLSettings{
				Host:     info.MySQL.Host,
				Port:     info.MySQL.Port,
				Database: info.MySQL.Database,
				Username: info.MySQL.Username,
				Password: info.MySQL.Password,
			}
		}
	}

	if needClips {
		s.ClipsBasePath = info.ClipsPath
	}

	return info, nil
}
