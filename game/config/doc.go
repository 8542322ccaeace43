// Package config provides configuration management for README 2048.
//
// Game configurations are JSON files in a directory, one variant per file:
//
//	{
//	  "name": "classic",
//	  "description": "Classic 4x4 board",
//	  "grid_size": 4,
//	  "start_tiles": 2,
//	  "spawn_values": [{"value": 2, "weight": 9}, {"value": 4, "weight": 1}]
//	}
//
// The file name without ".json" is the config ID used when creating a
// session. Loaded configs are cached; the default is classic when present,
// otherwise the first valid file, otherwise engine.DefaultConfig.
//
// Usage:
//
//	manager, err := config.NewManager("configs", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	tiny, err := manager.LoadConfig("tiny")
//	configs, err := manager.ListConfigs()
package config
