package invoice

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		keys    KeyStrategy
		storage *LocalStorage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		keys = KeyOriginal
	})

	JustBeforeEach(func() {
		var err error
		storage, err = NewLocalStorage(tmpDir, keys)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		var (
			filename string
			data     []byte
			key      string
			err      error
		)

		BeforeEach(func() {
			filename = "invoice1.jpg"
			data = []byte("test file content")
		})

		JustBeforeEach(func() {
			key, err = storage.Save(filename, data)
		})

		When("keys keep the original name", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should use the file name as key", func() {
				Expect(key).To(Equal("invoice1.jpg"))
			})

			It("should save the file to disk", func() {
				Expect(filepath.Join(tmpDir, "invoice1.jpg")).To(BeAnExistingFile())
			})

			It("should overwrite an earlier file with the same name", func() {
				_, err := storage.Save(filename, []byte("second upload"))
				Expect(err).NotTo(HaveOccurred())

				content, err := os.ReadFile(filepath.Join(tmpDir, "invoice1.jpg"))
				Expect(err).NotTo(HaveOccurred())
				Expect(string(content)).To(Equal("second upload"))
			})
		})

		When("the name tries to leave the directory", func() {
			BeforeEach(func() {
				filename = "../../etc/passwd"
			})

			It("should keep only the base name", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(key).To(Equal("passwd"))
				Expect(filepath.Join(tmpDir, "passwd")).To(BeAnExistingFile())
			})
		})

		When("the name is empty", func() {
			BeforeEach(func() {
				filename = ""
			})

			It("should fall back to a default key", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(key).To(Equal("upload"))
			})
		})

		When("keys are unique", func() {
			BeforeEach(func() {
				keys = KeyUnique
				filename = "my invoice (1).jpg"
			})

			It("should prefix a uuid to the sanitized name", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(key).To(MatchRegexp(`^[0-9a-f-]{36}_my invoice 1\.jpg$`))
			})

			It("should keep two uploads with the same name apart", func() {
				other, err := storage.Save(filename, []byte("second upload"))
				Expect(err).NotTo(HaveOccurred())
				Expect(other).NotTo(Equal(key))

				first, err := storage.Get(key)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(first)).To(Equal("test file content"))
			})
		})

		When("the directory was removed", func() {
			BeforeEach(func() {
				tmpDir = filepath.Join(GinkgoT().TempDir(), "uploads")
			})

			JustBeforeEach(func() {
				Expect(os.RemoveAll(tmpDir)).To(Succeed())
				key, err = storage.Save(filename, data)
			})

			It("should recreate it", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(tmpDir, key)).To(BeAnExistingFile())
			})
		})
	})

	Describe("Path", func() {
		It("should join the key to the base path", func() {
			Expect(storage.Path("a.jpg")).To(Equal(filepath.Join(tmpDir, "a.jpg")))
		})
	})

	Describe("Get", func() {
		var (
			key  string
			data []byte
			err  error
		)

		JustBeforeEach(func() {
			data, err = storage.Get(key)
		})

		When("file exists", func() {
			BeforeEach(func() {
				key = "test.jpg"
				Expect(os.WriteFile(filepath.Join(tmpDir, key), []byte("test file content"), 0644)).To(Succeed())
			})

			It("should return the file data", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(string(data)).To(Equal("test file content"))
			})
		})

		When("file does not exist", func() {
			BeforeEach(func() {
				key = "nonexistent.jpg"
			})

			It("returns a not-exist error", func() {
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("reading file"))
				Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())
			})
		})
	})

	Describe("Delete", func() {
		var (
			key string
			err error
		)

		JustBeforeEach(func() {
			err = storage.Delete(key)
		})

		When("file exists", func() {
			BeforeEach(func() {
				key = "test.jpg"
				Expect(os.WriteFile(filepath.Join(tmpDir, key), []byte("test content"), 0644)).To(Succeed())
			})

			It("should remove the file from disk", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(filepath.Join(tmpDir, key)).NotTo(BeAnExistingFile())
			})
		})

		When("file does not exist", func() {
			BeforeEach(func() {
				key = "nonexistent.jpg"
			})

			It("returns the error", func() {
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("deleting file"))
			})
		})
	})
})

var _ = Describe("ParseKeyStrategy", func() {
	It("accepts known strategies", func() {
		Expect(ParseKeyStrategy("unique")).To(Equal(KeyUnique))
		Expect(ParseKeyStrategy("original")).To(Equal(KeyOriginal))
	})

	It("rejects unknown strategies", func() {
		_, err := ParseKeyStrategy("random")
		Expect(err).To(MatchError(ContainSubstring(`unknown storage key strategy "random"`)))
	})
})

var _ = Describe("sanitizeFilename", func() {
	DescribeTable("cleans names",
		func(input, expected string) {
			Expect(sanitizeFilename(input)).To(Equal(expected))
		},
		Entry("plain name", "invoice.pdf", "invoice.pdf"),
		Entry("special characters", "inv#oi@ce!.jpg", "invoice.jpg"),
		Entry("collapsed spaces", "my   invoice.png", "my invoice.png"),
		Entry("no extension", "scan", "scan"),
		Entry("only symbols", "@@@.jpg", "invoice.jpg"),
		Entry("directory parts", "a/b/c.jpg", "c.jpg"),
	)

	It("truncates long names to 50 characters", func() {
		long := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.jpg"
		Expect(sanitizeFilename(long)).To(Equal("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa.jpg"))
	})
})
