package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/foodlink/foodlink/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a location database from a YAML or JSON file. Location order in the
// file is kept.
func LoadFile(path string) (*model.Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read database file", goerr.V("path", path))
	}

	var db model.Database
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &db)
	} else {
		err = yaml.Unmarshal(data, &db)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse database file", goerr.V("path", path))
	}
	return &db, nil
}
