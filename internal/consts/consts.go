package consts

const DefaultModelID = "default"

type StorageSupplier string

const (
	StorageLocal  StorageSupplier = "local"
	StorageAliOss StorageSupplier = "ali_oss"
)

func (s StorageSupplier) String() string {
	return string(s)
}

type DatabaseDriver string

const (
	DriverMySQL  DatabaseDriver = "mysql"
	DriverSQLite DatabaseDriver = "sqlite"
)

func (d DatabaseDriver) String() string {
	return string(d)
}

type CountBackend string

const (
	CountBackendUpsert    CountBackend = "upsert"
	CountBackendReadWrite CountBackend = "read_write"
)

func (c CountBackend) String() string {
	return string(c)
}

type DetectorType string

const (
	DetectorTFServing DetectorType = "tensorflow-serving"
)

func (d DetectorType) String() string {
	return string(d)
}

type ImageType string

const (
	ImageTypePNG     ImageType = "png"
	ImageTypeJPEG    ImageType = "jpeg"
	ImageTypeGIF     ImageType = "gif"
	ImageTypeWEBP    ImageType = "webp"
	ImageTypeUnknown ImageType = "unknown"
)

func (i ImageType) String() string {
	return string(i)
}

// storage_metadata keys
const (
	MetaLocalPath     = "local_path"
	MetaObjectKey     = "object_key"
	MetaBucket        = "bucket"
	MetaThumbnailPath = "thumbnail_path"
)
