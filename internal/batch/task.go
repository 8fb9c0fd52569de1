package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iProgramme/AI-shouban/internal/image"
	"gopkg.in/yaml.v3"
)

type Task struct {
	Prompt      string            `yaml:"prompt" json:"prompt"`
	AspectRatio image.AspectRatio `yaml:"aspect_ratio,omitempty" json:"aspect_ratio,omitempty"`
	Resolution  image.Resolution  `yaml:"resolution,omitempty" json:"resolution,omitempty"`
	Label       string            `yaml:"label,omitempty" json:"label,omitempty"`
	Name        string            `yaml:"name,omitempty" json:"name,omitempty"`
	Sources     []string          `yaml:"sources,omitempty" json:"sources,omitempty"`
}

type taskFile struct {
	Tasks []Task `yaml:"tasks" json:"tasks"`
}

// DefaultTasks is the demo batch run when no task file is configured.
func DefaultTasks() []Task {
	return []Task{
		{Prompt: "A lighthouse standing by the sea at sunset, orange-red sky", AspectRatio: image.AspectRatio16x9, Resolution: image.Resolution2K, Label: "lighthouse"},
		{Prompt: "A small cabin in the forest, sunlight through the leaves, warm and quiet", AspectRatio: image.AspectRatio4x3, Resolution: image.Resolution2K, Label: "cabin"},
		{Prompt: "Futuristic city at night, neon lights, cyberpunk style", AspectRatio: image.AspectRatio21x9, Resolution: image.Resolution2K, Label: "city"},
	}
}

// LoadTasks reads a task file. ".json" files are parsed as JSON, everything
// else as YAML. The file holds either a bare list or a {tasks: [...]} document.
func LoadTasks(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}

	unmarshal := yaml.Unmarshal
	if strings.EqualFold(filepath.Ext(path), ".json") {
		unmarshal = json.Unmarshal
	}

	var tasks []Task
	if err := unmarshal(data, &tasks); err != nil {
		var doc taskFile
		if err := unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing task file %s: %w", path, err)
		}
		tasks = doc.Tasks
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("task file %s has no tasks", path)
	}
	return tasks, nil
}
