// Package config loads and validates landscape run settings from JSON.
package config
