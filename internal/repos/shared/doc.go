// Package shared declares the collaborator interfaces used to register and inspect repositories.
package shared
