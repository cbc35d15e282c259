// Package kstest contains helpers shared by tests across the module.
package kstest
