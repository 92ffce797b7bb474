package rustgen

// cppUtilsRuntime is the fixed part of src/cpp_utils.rs.
const cppUtilsRuntime = `//! Pointer wrappers and helper types shared by the generated bindings.

use std::marker::PhantomData;
use std::ops::{BitOr, Deref, DerefMut};
use std::os::raw::c_int;
use std::ptr::NonNull;

/// Types whose objects are released with C++ ` + "`delete`" + `.
pub trait CppDeletable {
    /// Deletes the object. The pointer must not be used afterwards.
    unsafe fn delete(&mut self);
}

/// An owning pointer to a C++ object, deleted when dropped.
pub struct CppBox<T: CppDeletable>(NonNull<T>);

impl<T: CppDeletable> CppBox<T> {
    /// Takes ownership of ptr. Returns None for a null pointer.
    pub unsafe fn from_raw(ptr: *mut T) -> Option<Self> {
        NonNull::new(ptr).map(CppBox)
    }

    /// Releases ownership and returns the raw pointer.
    pub fn into_raw(self) -> *mut T {
        let ptr = self.0.as_ptr();
        std::mem::forget(self);
        ptr
    }

    pub fn as_ptr(&self) -> Ptr<T> {
        Ptr(self.0.as_ptr())
    }

    pub fn as_mut_ptr(&mut self) -> MutPtr<T> {
        MutPtr(self.0.as_ptr())
    }

    pub fn as_raw_ptr(&self) -> *const T {
        self.0.as_ptr()
    }

    pub fn as_mut_raw_ptr(&mut self) -> *mut T {
        self.0.as_ptr()
    }
}

impl<T: CppDeletable> Deref for CppBox<T> {
    type Target = T;

    fn deref(&self) -> &T {
        unsafe { self.0.as_ref() }
    }
}

impl<T: CppDeletable> DerefMut for CppBox<T> {
    fn deref_mut(&mut self) -> &mut T {
        unsafe { self.0.as_mut() }
    }
}

impl<T: CppDeletable> Drop for CppBox<T> {
    fn drop(&mut self) {
        unsafe { T::delete(self.0.as_mut()) }
    }
}

/// A non-owning const pointer to a C++ object. It may be null.
pub struct Ptr<T>(*const T);

impl<T> Ptr<T> {
    pub unsafe fn from_raw(ptr: *const T) -> Self {
        Ptr(ptr)
    }

    pub fn null() -> Self {
        Ptr(std::ptr::null())
    }

    pub fn is_null(self) -> bool {
        self.0.is_null()
    }

    pub fn as_raw_ptr(self) -> *const T {
        self.0
    }

    /// Returns a reference, or None for a null pointer.
    pub unsafe fn as_ref(self) -> Option<&'static T> {
        self.0.as_ref()
    }
}

impl<T> Clone for Ptr<T> {
    fn clone(&self) -> Self {
        Ptr(self.0)
    }
}

impl<T> Copy for Ptr<T> {}

/// A non-owning mutable pointer to a C++ object. It may be null.
pub struct MutPtr<T>(*mut T);

impl<T> MutPtr<T> {
    pub unsafe fn from_raw(ptr: *mut T) -> Self {
        MutPtr(ptr)
    }

    pub fn null() -> Self {
        MutPtr(std::ptr::null_mut())
    }

    pub fn is_null(self) -> bool {
        self.0.is_null()
    }

    pub fn as_raw_ptr(self) -> *const T {
        self.0
    }

    pub fn as_mut_raw_ptr(self) -> *mut T {
        self.0
    }

    pub fn as_ptr(self) -> Ptr<T> {
        Ptr(self.0)
    }

    /// Returns a mutable reference, or None for a null pointer.
    pub unsafe fn as_mut(self) -> Option<&'static mut T> {
        self.0.as_mut()
    }
}

impl<T> Clone for MutPtr<T> {
    fn clone(&self) -> Self {
        MutPtr(self.0)
    }
}

impl<T> Copy for MutPtr<T> {}

/// Enums usable as flags.
pub trait FlagsEnum: Copy {
    fn to_flag_value(self) -> c_int;
}

/// A combination of enum flags, stored as the C++ int value.
pub struct Flags<T> {
    value: c_int,
    _marker: PhantomData<T>,
}

impl<T> Flags<T> {
    pub fn from_int(value: c_int) -> Self {
        Flags { value, _marker: PhantomData }
    }

    pub fn to_int(self) -> c_int {
        self.value
    }
}

impl<T: FlagsEnum> Flags<T> {
    pub fn from_enum(flag: T) -> Self {
        Self::from_int(flag.to_flag_value())
    }

    /// Reports whether every bit of flag is set.
    pub fn test_flag(self, flag: T) -> bool {
        let v = flag.to_flag_value();
        self.value & v == v
    }
}

impl<T> Clone for Flags<T> {
    fn clone(&self) -> Self {
        Self::from_int(self.value)
    }
}

impl<T> Copy for Flags<T> {}

impl<T> PartialEq for Flags<T> {
    fn eq(&self, other: &Self) -> bool {
        self.value == other.value
    }
}

impl<T> Eq for Flags<T> {}

impl<T> std::fmt::Debug for Flags<T> {
    fn fmt(&self, f: &mut std::fmt::Formatter) -> std::fmt::Result {
        write!(f, "Flags({:#x})", self.value)
    }
}

impl<T: FlagsEnum> From<T> for Flags<T> {
    fn from(flag: T) -> Self {
        Self::from_enum(flag)
    }
}

impl<T> BitOr for Flags<T> {
    type Output = Flags<T>;

    fn bitor(self, rhs: Flags<T>) -> Flags<T> {
        Self::from_int(self.value | rhs.value)
    }
}

impl<T: FlagsEnum> BitOr<T> for Flags<T> {
    type Output = Flags<T>;

    fn bitor(self, rhs: T) -> Flags<T> {
        Self::from_int(self.value | rhs.to_flag_value())
    }
}
`

// cppUtils renders src/cpp_utils.rs.
func (e *Emitter) cppUtils() string {
	w := &writer{}
	w.b.WriteString(cppUtilsRuntime)
	w.line("")
	w.line("/// The C++ wide character type.")
	e.wcharTypes(w)
	return w.String()
}
