package policy

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/aura-nw/smart-account-sample/pkg/store"
)

// ContractVersion identifies the module and version that wrote an account's state.
type ContractVersion struct {
	Contract string `json:"contract"`
	Version  string `json:"version"`
}

var contractInfo = store.NewItem[ContractVersion]("contract_info")

func contractName(module string) string {
	return "crates.io:" + module
}

func setContractVersion(ctx context.Context, kv store.KVStore, module, version string) error {
	if _, err := semver.NewVersion(version); err != nil {
		return fmt.Errorf("invalid version %s: %w", version, err)
	}
	return contractInfo.Save(ctx, kv, ContractVersion{Contract: contractName(module), Version: version})
}

// GetContractVersion returns what was recorded at instantiation or the last migration.
func GetContractVersion(ctx context.Context, kv store.KVStore) (ContractVersion, error) {
	return contractInfo.Load(ctx, kv)
}

// migrateContract refuses to move state written by another module or by a newer
// version.
func migrateContract(ctx context.Context, deps Deps, module string, req MigrateRequest) (*Response, error) {
	current, err := GetContractVersion(ctx, deps.Store)
	if err != nil {
		return nil, err
	}
	if current.Contract != contractName(module) {
		return nil, fmt.Errorf("cannot migrate from %s to %s", current.Contract, contractName(module))
	}

	newVersion, err := semver.NewVersion(req.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid version %s: %w", req.Version, err)
	}
	currentVersion, err := semver.NewVersion(current.Version)
	if err != nil {
		return nil, fmt.Errorf("stored version %s is invalid: %w", current.Version, err)
	}
	if newVersion.LessThan(currentVersion) {
		return nil, fmt.Errorf("rollback from %s to %s denied", currentVersion, newVersion)
	}

	if err := setContractVersion(ctx, deps.Store, module, newVersion.String()); err != nil {
		return nil, err
	}
	deps.logger(module).InfoContext(ctx, "migrated", "from", current.Version, "to", newVersion.String())
	return NewResponse("migrate").
		AddAttribute("from_version", current.Version).
		AddAttribute("to_version", newVersion.String()), nil
}
