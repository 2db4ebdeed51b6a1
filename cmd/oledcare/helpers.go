package main

import (
	"fmt"
	"strconv"
)

func parseIntArg(args []string, valueName string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	value, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}

	return value, nil
}

func parseOnOffArg(args []string, valueName string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("invalid number of arguments")
	}

	switch args[0] {
	case "on", "true", "enable":
		return true, nil
	case "off", "false", "disable":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s: expected on/off, got %q", valueName, args[0])
	}
}
