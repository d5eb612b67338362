package mocks

//go:generate mockery --name RecordSource --srcpkg github.com/aevon-lab/tally/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
