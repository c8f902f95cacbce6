// Package config loads pdfserver.json configuration with defaults.
package config
